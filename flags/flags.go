// Copyright (c) 2016 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package flags creates command line options from the exported fields of a
// configuration struct, so values loaded from YAML can be overridden per run.
//
// Given
//
//	type IndexConfig struct {
//		MaxLevel int `yaml:"max_level" usage:"Highest level index."`
//	}
//
//	type Config struct {
//		Index *IndexConfig `yaml:"index"`
//	}
//
// FlagMaker.ParseArgs(&Config{}, args) defines the flag -index.max_level. Nested
// structs are namespaced with a dot unless Flatten is set. Maps, channels and
// functions are skipped; of slices only []string is supported, by repeating
// the flag.
package flags

import (
	"flag"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// FlagMakingOptions control the way FlagMaker's behavior when defining flags.
type FlagMakingOptions struct {
	// Use lower case flag names rather than the field name/tag name directly.
	UseLowerCase bool
	// Create flags without namespacing.
	Flatten bool
	// If there is a struct tag named 'TagName', use its value as the flag name.
	TagName string
	// If there is a struct tag named 'TagUsage', use its value as the usage description.
	TagUsage string
}

// FlagMaker enumerates the exported fields of a struct recursively and
// creates a flag for each of them. Duplicated flag names panic.
type FlagMaker struct {
	opts *FlagMakingOptions
	fs   *flag.FlagSet
}

// NewFlagMakerFlagSet defines flags on the given flag set.
func NewFlagMakerFlagSet(options *FlagMakingOptions, fs *flag.FlagSet) *FlagMaker {
	return &FlagMaker{
		opts: options,
		fs:   fs,
	}
}

// ParseArgs parses the arguments based on the FlagMaker's setting and returns
// the remaining non-flag arguments.
func (fm *FlagMaker) ParseArgs(obj interface{}, args []string) ([]string, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		return args, fmt.Errorf("top level object must be a pointer. %v is passed", v.Type())
	}
	if v.IsNil() {
		return args, fmt.Errorf("top level object cannot be nil")
	}
	if v.Elem().Kind() != reflect.Struct {
		return args, fmt.Errorf("object must be a pointer to struct. %v is passed", v.Type())
	}

	fm.enumerateAndCreate("", v.Elem(), "")

	err := fm.fs.Parse(args)
	return fm.fs.Args(), err
}

func (fm *FlagMaker) enumerateAndCreate(prefix string, value reflect.Value, usage string) {
	switch value.Kind() {
	case reflect.Map, reflect.Uintptr, reflect.UnsafePointer, reflect.Array, reflect.Chan, reflect.Func, reflect.Interface:
		return
	case reflect.Slice:
		if value.Type().Elem().Kind() == reflect.String {
			fm.fs.Var(newStringSlice(value.Addr().Interface().(*[]string)), prefix, usage)
		}
		return
	case reflect.Ptr:
		if value.IsNil() {
			value.Set(reflect.New(value.Type().Elem()))
		}
		fm.enumerateAndCreate(prefix, value.Elem(), usage)
		return
	case reflect.Struct:
		// keep going
	default:
		fm.defineFlag(prefix, value, usage)
		return
	}

	tt := value.Type()
	for i := 0; i < value.NumField(); i++ {
		stField := tt.Field(i)
		if stField.PkgPath != "" {
			continue
		}
		optName := fm.getName(stField)
		if len(prefix) > 0 && !fm.opts.Flatten {
			optName = prefix + "." + optName
		}

		fm.enumerateAndCreate(optName, value.Field(i), fm.getUsage(optName, stField))
	}
}

func (fm *FlagMaker) getName(field reflect.StructField) string {
	name := field.Tag.Get(fm.opts.TagName)
	if idx := strings.Index(name, ","); idx >= 0 {
		name = name[:idx]
	}
	if len(name) == 0 {
		name = field.Name
	}
	if fm.opts.UseLowerCase {
		return strings.ToLower(name)
	}
	return name
}

func (fm *FlagMaker) getUsage(name string, field reflect.StructField) string {
	usage := field.Tag.Get(fm.opts.TagUsage)
	if len(usage) == 0 {
		usage = name
	}
	return usage
}

var (
	stringPtrType  = reflect.TypeOf((*string)(nil))
	boolPtrType    = reflect.TypeOf((*bool)(nil))
	float64PtrType = reflect.TypeOf((*float64)(nil))
	intPtrType     = reflect.TypeOf((*int)(nil))
	int64PtrType   = reflect.TypeOf((*int64)(nil))
	uintPtrType    = reflect.TypeOf((*uint)(nil))
	uint64PtrType  = reflect.TypeOf((*uint64)(nil))
)

// defineFlag binds a flag to a scalar field. Kinds without a matching flag
// type are skipped.
func (fm *FlagMaker) defineFlag(name string, value reflect.Value, usage string) {
	ptrValue := value.Addr()
	switch value.Kind() {
	case reflect.String:
		v := ptrValue.Convert(stringPtrType).Interface().(*string)
		fm.fs.StringVar(v, name, value.String(), usage)
	case reflect.Bool:
		v := ptrValue.Convert(boolPtrType).Interface().(*bool)
		fm.fs.BoolVar(v, name, value.Bool(), usage)
	case reflect.Int:
		v := ptrValue.Convert(intPtrType).Interface().(*int)
		fm.fs.IntVar(v, name, int(value.Int()), usage)
	case reflect.Int64:
		if v, ok := ptrValue.Interface().(*time.Duration); ok {
			fm.fs.DurationVar(v, name, *v, usage)
			return
		}
		v := ptrValue.Convert(int64PtrType).Interface().(*int64)
		fm.fs.Int64Var(v, name, value.Int(), usage)
	case reflect.Uint:
		v := ptrValue.Convert(uintPtrType).Interface().(*uint)
		fm.fs.UintVar(v, name, uint(value.Uint()), usage)
	case reflect.Uint64:
		v := ptrValue.Convert(uint64PtrType).Interface().(*uint64)
		fm.fs.Uint64Var(v, name, value.Uint(), usage)
	case reflect.Float64:
		v := ptrValue.Convert(float64PtrType).Interface().(*float64)
		fm.fs.Float64Var(v, name, value.Float(), usage)
	}
}

// stringSlice appends one element per occurrence of the flag. The first
// occurrence replaces the default value.
type stringSlice struct {
	v       *[]string
	changed bool
}

func newStringSlice(p *[]string) *stringSlice {
	return &stringSlice{v: p}
}

func (s *stringSlice) Set(val string) error {
	if !s.changed {
		*s.v = nil
		s.changed = true
	}
	*s.v = append(*s.v, val)
	return nil
}

func (s *stringSlice) String() string {
	if s.v == nil {
		return ""
	}
	return strings.Join(*s.v, ",")
}
