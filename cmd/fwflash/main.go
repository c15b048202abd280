package main

import (
	"github.com/sirupsen/logrus"

	"github.com/synthread/fwflash/cmd/fwflash/app"
)

func main() {
	if err := app.NewCommand().Execute(); err != nil {
		logrus.Fatal(err)
	}
}
