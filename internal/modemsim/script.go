package modemsim

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/phonebridge/internal/radio"
)

// Script is the YAML description of how the simulated modem answers.
//
// Each opcode has a list of replies used in order; the last reply repeats.
// Opcodes without replies fail with REQUEST_NOT_SUPPORTED.
type Script struct {
	Responses map[string][]Reply `yaml:"responses"`
	Card      *CardScript        `yaml:"card,omitempty"`
}

// Reply is one scripted answer.
type Reply struct {
	// Value is decoded into the opcode's downstream response type.
	Value yaml.Node `yaml:"value,omitempty"`
	// Error is a radio error code such as MODEM_ERR.
	Error    string `yaml:"error,omitempty"`
	Message  string `yaml:"message,omitempty"`
	Attempts *int   `yaml:"attempts,omitempty"`
	// Empty answers with neither value nor error.
	Empty bool `yaml:"empty,omitempty"`
	// Hang never answers until Release.
	Hang bool `yaml:"hang,omitempty"`
	// Delay postpones the answer on the simulator's clock.
	Delay time.Duration `yaml:"delay,omitempty"`
	// Duplicate answers twice.
	Duplicate bool `yaml:"duplicate,omitempty"`
}

// CardScript configures the simulated SIM card application.
type CardScript struct {
	PIN         string        `yaml:"pin"`
	PUK         string        `yaml:"puk"`
	PINAttempts int           `yaml:"pin_attempts"`
	PUKAttempts int           `yaml:"puk_attempts"`
	Delay       time.Duration `yaml:"delay,omitempty"`
	Abort       bool          `yaml:"abort,omitempty"`
}

// reply is a compiled Reply.
type reply struct {
	outcome   radio.Outcome
	hang      bool
	delay     time.Duration
	duplicate bool
}

// knownCodes are the error codes a script may name.
var knownCodes = map[radio.ErrorCode]bool{
	radio.ErrRadioNotAvailable:   true,
	radio.ErrRequestNotSupported: true,
	radio.ErrGenericFailure:      true,
	radio.ErrInvalidArguments:    true,
	radio.ErrInternal:            true,
	radio.ErrModem:               true,
	radio.ErrMissingResource:     true,
	radio.ErrNoSuchElement:       true,
	radio.ErrSimBusy:             true,
	radio.ErrSimError:            true,
	radio.ErrPasswordIncorrect:   true,
	radio.ErrAborted:             true,
	radio.ErrInvalidState:        true,
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modem script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScript decodes and validates a script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse modem script: %w", err)
	}
	if _, err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// compile resolves opcode names and decodes values. All problems are
// reported together.
func (s *Script) compile() (map[radio.Opcode][]reply, error) {
	out := make(map[radio.Opcode][]reply, len(s.Responses))
	var errs []error

	for name, replies := range s.Responses {
		op, err := radio.ParseOpcode(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(replies) == 0 {
			errs = append(errs, fmt.Errorf("%s: no replies", op))
			continue
		}
		for i, r := range replies {
			c, err := compileReply(op, r)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s reply %d: %w", op, i, err))
				continue
			}
			out[op] = append(out[op], c)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func compileReply(op radio.Opcode, r Reply) (reply, error) {
	c := reply{hang: r.Hang, delay: r.Delay, duplicate: r.Duplicate}
	if r.Delay < 0 {
		return reply{}, fmt.Errorf("negative delay %s", r.Delay)
	}

	hasValue := !r.Value.IsZero()
	switch {
	case r.Error != "":
		if hasValue || r.Empty {
			return reply{}, errors.New("error excludes value and empty")
		}
		code := radio.ErrorCode(r.Error)
		if !knownCodes[code] {
			return reply{}, fmt.Errorf("unknown error code %q", r.Error)
		}
		e := radio.NewError(code, r.Message)
		if r.Attempts != nil {
			e.AttemptsRemaining = *r.Attempts
		}
		c.outcome = radio.Outcome{Err: e}

	case r.Empty || !hasValue:
		c.outcome = radio.Empty()

	default:
		v, err := decodeValue(op, &r.Value)
		if err != nil {
			return reply{}, err
		}
		c.outcome = radio.Success(v)
	}
	return c, nil
}

// decodeValue decodes node into the response type op expects.
func decodeValue(op radio.Opcode, node *yaml.Node) (any, error) {
	ptr := radio.NewResponse(op)
	if ptr == nil {
		return nil, fmt.Errorf("%s is acknowledged without a value", op)
	}
	if err := node.Decode(ptr); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return ptr, nil
}
