package filedb

import (
	"bytes"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// TreeOption holds the layout written into the header of a new index file.
// An existing file keeps the layout stored in its header.
type TreeOption struct {
	MaxElemsInNode int          `validate:"min=2"`
	KeySize        int          `validate:"min=1,max=20"`
	ValSize        int          `validate:"min=1,max=20"`
	LinkSize       int          `validate:"min=1,max=20"`
	Eod            string       `validate:"required,max=20"`
	EndOfNode      string       `validate:"required,max=20"`
	Logger         *slog.Logger `validate:"-"`
}

func DefaultTreeOption() TreeOption {
	return TreeOption{
		MaxElemsInNode: defaultMaxElemsInNode,
		KeySize:        defaultKeySize,
		ValSize:        defaultValSize,
		LinkSize:       defaultLinkSize,
		Eod:            defaultEod,
		EndOfNode:      defaultEndOfNode,
	}
}

// withDefaults fills every zero field from DefaultTreeOption.
func (o TreeOption) withDefaults() TreeOption {
	def := DefaultTreeOption()
	if o.MaxElemsInNode == 0 {
		o.MaxElemsInNode = def.MaxElemsInNode
	}
	if o.KeySize == 0 {
		o.KeySize = def.KeySize
	}
	if o.ValSize == 0 {
		o.ValSize = def.ValSize
	}
	if o.LinkSize == 0 {
		o.LinkSize = def.LinkSize
	}
	if o.Eod == "" {
		o.Eod = def.Eod
	}
	if o.EndOfNode == "" {
		o.EndOfNode = def.EndOfNode
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o *TreeOption) validate() error {
	if err := structValidator.Struct(o); err != nil {
		return errors.Wrap(err, "invalid tree option")
	}
	// sentinels are NUL-stripped on read and must never look like element data
	for _, s := range []string{o.Eod, o.EndOfNode} {
		if bytes.IndexByte([]byte(s), 0) >= 0 {
			return errors.Errorf("invalid tree option: sentinel %q contains NUL", s)
		}
	}
	if isDecimal([]byte(o.Eod)) {
		return errors.Errorf("invalid tree option: eod %q is all digits", o.Eod)
	}
	return nil
}

type Config struct {
	RootDir string `validate:"required"`
	Name    string `validate:"required,excludesall=/\\"`
	// Schema bootstraps the metadata file when it does not exist yet.
	Schema *Metadata    `validate:"omitempty"`
	Tree   TreeOption   `validate:"-"`
	Logger *slog.Logger `validate:"-"`
}

func (c *Config) validate() error {
	if err := structValidator.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
