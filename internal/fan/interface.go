package fan

import "time"

// Channel is the hardware link to the fan controller board. SendCommand
// blocks until the board acknowledged or rejected the command.
type Channel interface {
	SendCommand(command string) bool
}

// ChannelFunc adapts a plain function to Channel.
type ChannelFunc func(command string) bool

func (f ChannelFunc) SendCommand(command string) bool {
	return f(command)
}

// CommandSender relays fan commands with bounded retry.
type CommandSender interface {
	// Send transmits cmd, sleeping delay between failed attempts. It returns
	// an error coded errors.ErrFanCommandFailed once all attempts failed.
	Send(cmd Command, delay time.Duration) error
}

// Command is a fan command without the "fan:" channel prefix.
type Command string

const (
	CmdAuto Command = "auto"
	CmdOff  Command = "off"
	CmdDust Command = "dust"
)

// CommandPrefix is prepended to every command on the wire.
const CommandPrefix = "fan:"
