package flash

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ProcessResult is the outcome of one flasher run.
type ProcessResult struct {
	Success  bool
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner runs the external flasher to completion.
type Runner interface {
	Run(name string, args []string) (*ProcessResult, error)
}

// ExecRunner runs the flasher as a subprocess. Captured output is copied to
// Stdout and Stderr, which default to the process's own streams. There is no
// timeout: a hung flasher blocks the caller.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(name string, args []string) (*ProcessResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, markf(ErrProcessLaunch, err, "could not start %s", name)
	}

	res := &ProcessResult{
		Success: err == nil,
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
	}
	r.forward(res)

	if exitErr != nil {
		res.ExitCode = exitErr.ExitCode()
		return res, markf(ErrProcessExecution, err, "%s", name)
	}
	return res, nil
}

func (r ExecRunner) forward(res *ProcessResult) {
	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if _, err := stdout.Write(res.Stdout); err != nil {
		logrus.Debugf("forward flasher stdout: %v", err)
	}
	if _, err := stderr.Write(res.Stderr); err != nil {
		logrus.Debugf("forward flasher stderr: %v", err)
	}
}

// FlasherArgs builds the flasher command line for the job. The RS-485 form
// also hands the direction line to the flasher, which drives it for the rest
// of the transfer.
func FlasherArgs(c *Config) []string {
	var args []string
	if c.Transport == TransportRS485 {
		args = append(args,
			"-R",
			"-s", strconv.Itoa(c.StartPage),
			"-e", strconv.Itoa(c.EndPage),
		)
	}

	args = append(args, "-w", c.HexFile, "-v", c.TTY)

	if c.Transport == TransportRS485 {
		args = append(args, "-d", c.DirectionGPIO)
	}

	return append(args, "-b", strconv.Itoa(Baud))
}

// runFlasher runs the external flasher and reports its outcome
func (mc *Microcontroller) runFlasher() (*ProcessResult, error) {
	args := FlasherArgs(mc.config)
	logrus.Infof("running %s %v", mc.config.Flasher(), args)

	res, err := mc.runner.Run(mc.config.Flasher(), args)
	if err == nil && res != nil && !res.Success {
		err = markf(ErrProcessExecution, nil, "%s exited with code %d", mc.config.Flasher(), res.ExitCode)
	}
	if err != nil {
		logrus.Error("flasher failed: ", err.Error())
		return res, err
	}

	logrus.Info("flasher finished")
	return res, nil
}
