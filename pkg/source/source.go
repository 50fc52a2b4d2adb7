// Package source describes the connector types a user can add and the input
// panel each one renders.
package source

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Type identifies a connector.
type Type string

// Supported connector types.
const (
	TypeShopify             Type = "shopify"
	TypeAmazonSellerPartner Type = "amazon_seller_partner"
	TypeAmazonAds           Type = "amazon_ads"
	TypeFlipkart            Type = "flipkart"
)

// Types returns every known connector type.
func Types() []Type {
	return []Type{TypeShopify, TypeAmazonSellerPartner, TypeAmazonAds, TypeFlipkart}
}

// Valid reports whether t is a known connector type.
func (t Type) Valid() bool {
	return slices.Contains(Types(), t)
}

// FieldKind controls how a field is collected and displayed.
type FieldKind int

// Field kinds.
const (
	KindText FieldKind = iota
	KindSecret
	KindSelect
)

// Field is one input on a source panel.
type Field struct {
	Key         string
	Label       string
	Kind        FieldKind
	Placeholder string
	Default     string
	Options     []string
	Required    bool
}

// Secret reports whether the field holds a credential.
func (f Field) Secret() bool { return f.Kind == KindSecret }

// check validates a single value against the field.
func (f Field) check(v string) error {
	if strings.TrimSpace(v) == "" {
		if f.Required {
			return fmt.Errorf("%s is required", f.Label)
		}
		return nil
	}
	if f.Kind == KindSelect && !slices.Contains(f.Options, v) {
		return fmt.Errorf("%s must be one of %s", f.Label, strings.Join(f.Options, ", "))
	}
	return nil
}

// Panel is the input form for one connector type.
type Panel interface {
	Type() Type
	Title() string
	Fields() []Field
	// Validate returns every missing or invalid field joined into one error.
	Validate(values map[string]string) error
}

// FormPanel is a Panel described entirely by its field list.
type FormPanel struct {
	SourceType Type
	Name       string
	Inputs     []Field
}

// Type returns the connector type.
func (p FormPanel) Type() Type { return p.SourceType }

// Title returns the panel heading.
func (p FormPanel) Title() string { return p.Name }

// Fields returns a copy of the panel inputs.
func (p FormPanel) Fields() []Field { return slices.Clone(p.Inputs) }

// Validate checks values against every field.
func (p FormPanel) Validate(values map[string]string) error {
	var errs []error
	for _, f := range p.Inputs {
		if err := f.check(values[f.Key]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Defaults returns the initial values for the panel fields, using sourceName
// for the source name field when it is set.
func Defaults(p Panel, sourceName string) map[string]string {
	out := make(map[string]string)
	for _, f := range p.Fields() {
		out[f.Key] = f.Default
	}
	if sourceName != "" {
		if _, ok := out[FieldSourceName]; ok {
			out[FieldSourceName] = sourceName
		}
	}
	return out
}

// Credentials splits the secret values out of values.
func Credentials(p Panel, values map[string]string) (public, secret map[string]string) {
	public = make(map[string]string)
	secret = make(map[string]string)
	for _, f := range p.Fields() {
		v, ok := values[f.Key]
		if !ok {
			continue
		}
		if f.Secret() {
			secret[f.Key] = v
		} else {
			public[f.Key] = v
		}
	}
	return public, secret
}
