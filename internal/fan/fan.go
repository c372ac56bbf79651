package fan

import (
	"strconv"
	"strings"

	"codeberg.org/mutker/dustctl/internal/errors"
)

const (
	MinPercent = 0
	MaxPercent = 100
)

// On returns the fixed-speed command for percent, clamped to [0,100].
func On(percent int) Command {
	return Command("on:" + strconv.Itoa(ClampPercent(percent)))
}

// ClampPercent limits a fan speed to the range the board accepts.
func ClampPercent(percent int) int {
	if percent < MinPercent {
		return MinPercent
	}
	if percent > MaxPercent {
		return MaxPercent
	}
	return percent
}

// Wire returns the string sent over the channel.
func (c Command) Wire() string {
	return CommandPrefix + string(c)
}

// Parse reverses Wire. It accepts auto, off, dust and on:<0..100>.
func Parse(wire string) (Command, error) {
	errFactory := errors.New()

	body, ok := strings.CutPrefix(wire, CommandPrefix)
	if !ok {
		return "", errFactory.WithData(errors.ErrFanInvalidCommand, wire)
	}

	switch Command(body) {
	case CmdAuto, CmdOff, CmdDust:
		return Command(body), nil
	}

	value, ok := strings.CutPrefix(body, "on:")
	if !ok {
		return "", errFactory.WithData(errors.ErrFanInvalidCommand, wire)
	}
	percent, err := strconv.Atoi(value)
	if err != nil || percent != ClampPercent(percent) {
		return "", errFactory.WithData(errors.ErrFanInvalidCommand, wire)
	}

	return Command(body), nil
}
