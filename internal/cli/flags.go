package cli

import "github.com/alecthomas/kong"

// OptionalString is a flag that remembers whether it was given, so that an
// explicit empty value can clear a field.
type OptionalString struct {
	Value string
	Set   bool
}

func (o *OptionalString) Decode(ctx *kong.DecodeContext) error {
	if err := ctx.Scan.PopValueInto("value", &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

// Ptr returns nil when the flag was not given
func (o OptionalString) Ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}
