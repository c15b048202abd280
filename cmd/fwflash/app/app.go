package app

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/synthread/fwflash/flash"
)

const (
	commandName = "fwflash"
	commandDesc = `fwflash puts a microcontroller into its bootloader over a direct RS-232
link or a shared RS-485 bus, then programs it with an external stm32flash.

On the direct link the reset, boot0 and boot1 lines are read from
FWFLASH_GPIO_RESET, FWFLASH_GPIO_BOOT0 and FWFLASH_GPIO_BOOT1. On RS-485
the direction-control line is the optional third argument or
FWFLASH_GPIO_DIRECTION. A line is either a sysfs GPIO directory, a value
file, or a kernel GPIO number.`
)

// Config keys. Each is also read from FWFLASH_<KEY> with dots and dashes
// replaced by underscores.
const (
	keyRS485         = "rs485"
	keyTransport     = "transport"
	keyFlasher       = "flasher"
	keyStartPage     = "start-page"
	keyEndPage       = "end-page"
	keyStrict        = "strict"
	keyLogLevel      = "log-level"
	keyGPIODirection = "gpio.direction"
	keyGPIOBoot0     = "gpio.boot0"
	keyGPIOBoot1     = "gpio.boot1"
	keyGPIOReset     = "gpio.reset"
)

// NewCommand returns the fwflash root command.
func NewCommand() *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           commandName + " [flags] <port> <hexfile> [direction-gpio]",
		Short:         "Flash a microcontroller through its serial bootloader",
		Long:          commandDesc,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(v.GetString(keyLogLevel)); err != nil {
				return err
			}

			cfg, err := Config(v, args)
			if err != nil {
				return err
			}

			mc, err := flash.NewMicrocontroller(cfg)
			if err != nil {
				return err
			}

			_, err = mc.Flash(cmd.Context())
			return err
		},
	}

	addFlags(cmd.Flags())
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(commandName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyGPIODirection, "")
	v.SetDefault(keyGPIOBoot0, "")
	v.SetDefault(keyGPIOBoot1, "")
	v.SetDefault(keyGPIOReset, "")
	return v
}

func addFlags(fs *pflag.FlagSet) {
	fs.Bool(keyRS485, false, "Use the RS-485 bus instead of the direct RS-232 link.")
	fs.String(keyTransport, "", "Transport name ('direct', 'rs232' or 'rs485'); overrides --rs485.")
	fs.String(keyFlasher, flash.DefaultFlasher, "The flasher program to run.")
	fs.Int(keyStartPage, flash.DefaultStartPage, "First flash page written over RS-485.")
	fs.Int(keyEndPage, flash.DefaultEndPage, "Last flash page written over RS-485.")
	fs.Bool(keyStrict, false, "Exit with an error when the flasher fails to start or reports failure.")
	fs.String(keyLogLevel, logrus.InfoLevel.String(), "The minimum log level ('debug', 'info', 'warn', 'error').")
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logrus.SetLevel(lvl)
	return nil
}

// Config builds the flash job from the positional arguments and the settings
// held by v.
func Config(v *viper.Viper, args []string) (*flash.Config, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, errors.Wrapf(flash.ErrConfig, "want <port> <hexfile> [direction-gpio], got %d arguments", len(args))
	}

	var directionArg string
	if len(args) == 3 {
		directionArg = args[2]
	}

	c := flash.NewConfig()
	c.TTY = args[0]
	c.HexFile = args[1]
	c.Transport = flash.SelectTransport(v.GetBool(keyRS485), directionArg)

	if name := v.GetString(keyTransport); name != "" {
		t, err := flash.ParseTransport(name)
		if err != nil {
			return nil, err
		}
		c.Transport = t
	}

	c.DirectionGPIO = directionArg
	if c.DirectionGPIO == "" {
		c.DirectionGPIO = v.GetString(keyGPIODirection)
	}
	c.Boot0GPIO = v.GetString(keyGPIOBoot0)
	c.Boot1GPIO = v.GetString(keyGPIOBoot1)
	c.ResetGPIO = v.GetString(keyGPIOReset)

	if f := v.GetString(keyFlasher); f != "" {
		c.FlasherPath = f
	}
	if v.IsSet(keyStartPage) {
		c.StartPage = v.GetInt(keyStartPage)
	}
	if v.IsSet(keyEndPage) {
		c.EndPage = v.GetInt(keyEndPage)
	}
	c.StrictExit = v.GetBool(keyStrict)

	return c, nil
}
