// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

// Package validation checks utunguard configuration values and renders
// failures as a numbered, human-readable list.
package validation

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DNSRestoreSentinel is the networksetup value that clears manual servers.
const DNSRestoreSentinel = "empty"

// FieldError is a single failed check
type FieldError struct {
	Field   string // dotted toml path, e.g. "dns.activate"
	Message string
}

// Errors is a collection of failed checks
type Errors []FieldError

// Error implements the error interface
func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "validation failed with %d error(s):\n", len(ve))
	for i, e := range ve {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, e.Field, e.Message)
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("dns_value", func(fl validator.FieldLevel) bool {
		return ValidateDNSValue(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}

	// Report fields by their toml name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates v against its `validate` tags.
// Tag failures are returned as Errors.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{Field: fieldPath(e), Message: message(e)})
	}
	return out
}

// fieldPath drops the root struct name from the namespace
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "required_if":
		return fmt.Sprintf("field is required when %s", strings.Replace(e.Param(), " ", " is ", 1))
	case "ip":
		return "must be a valid IP address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gt":
		if e.Param() == "0" {
			return "must be positive"
		}
		return fmt.Sprintf("must be > %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "fqdn":
		return "must be a fully qualified domain name"
	case "dns_value":
		return fmt.Sprintf("must be an IP address or %q", DNSRestoreSentinel)
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidateIP validates that a string is a valid IPv4 or IPv6 address.
func ValidateIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("IP address cannot be empty")
	}

	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid IP address: %s", ip)
	}

	return nil
}

// ValidateDNSValue accepts what networksetup -setdnsservers takes for a
// single server: an IP address or the restore sentinel.
func ValidateDNSValue(value string) error {
	if value == DNSRestoreSentinel {
		return nil
	}
	if err := ValidateIP(value); err != nil {
		return fmt.Errorf("%w (or %q to clear)", err, DNSRestoreSentinel)
	}
	return nil
}

// Collector accumulates failed checks from several sources so they can be
// reported at once.
type Collector struct {
	errs Errors
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a failed check.
func (c *Collector) Add(field, msg string) {
	c.errs = append(c.errs, FieldError{Field: field, Message: msg})
}

// Merge records the failures of a Struct call. Errors that are not
// validation failures are recorded under "config".
func (c *Collector) Merge(err error) {
	if err == nil {
		return
	}
	var ve Errors
	if errors.As(err, &ve) {
		c.errs = append(c.errs, ve...)
		return
	}
	c.Add("config", err.Error())
}

// Err returns the collected failures, or nil when there are none.
func (c *Collector) Err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}
