package command

import (
	"fmt"
	"strconv"
	"strings"
)

// SetPayload builds the "SET <width> <height> <bitrate> <fps>" request.
// Range checks mirror what the device enforces so a bad value is rejected
// before it goes on the wire; bitrate is always formatted with exactly three
// fractional digits.
func SetPayload(width, height int, bitrate float64, fps int) (string, error) {
	if width < 1 || height < 1 {
		return "", &Failure{Kind: InvalidArgument, Message: fmt.Sprintf("width/height must be >= 1, got %dx%d", width, height)}
	}
	if bitrate <= 0 || bitrate >= 10000 {
		return "", &Failure{Kind: InvalidArgument, Message: fmt.Sprintf("bitrate out of range (0..10000): %.3f", bitrate)}
	}
	if fps < 1 || fps > 240 {
		return "", &Failure{Kind: InvalidArgument, Message: fmt.Sprintf("fps out of range (1..240): %d", fps)}
	}
	return fmt.Sprintf("SET %d %d %.3f %d", width, height, bitrate, fps), nil
}

// GetPayload builds the "GET" request.
func GetPayload() string {
	return "GET"
}

// ReplyClass is a coarse classification of device replies, for display only.
// The channel itself never interprets reply contents.
type ReplyClass int

const (
	// ReplyOK is an acknowledgement ("OK ...")
	ReplyOK ReplyClass = iota
	// ReplyErr is a device-reported error ("ERR ...")
	ReplyErr
	// ReplySettings is a four-field echo of current settings
	ReplySettings
	// ReplyOther is anything else
	ReplyOther
)

// ClassifyReply inspects a trimmed reply string.
func ClassifyReply(reply string) ReplyClass {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return ReplyOther
	}
	switch fields[0] {
	case "OK":
		return ReplyOK
	case "ERR":
		return ReplyErr
	}
	if len(fields) == 4 {
		if _, err := strconv.Atoi(fields[0]); err != nil {
			return ReplyOther
		}
		if _, err := strconv.Atoi(fields[1]); err != nil {
			return ReplyOther
		}
		if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
			return ReplyOther
		}
		if _, err := strconv.Atoi(fields[3]); err != nil {
			return ReplyOther
		}
		return ReplySettings
	}
	return ReplyOther
}
