// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugger

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/beevik/prefixtree/v2"
)

// settings holds the debugger's configurable variables, adapted from
// host/settings.go's reflection-plus-prefixtree design so that the "set"
// command can look up a variable by any unambiguous prefix of its name.
type settings struct {
	CompactMode     bool   `doc:"compact disassembly output"`
	MemDumpWords    int    `doc:"default number of memory words to dump"`
	DisasmLines     int    `doc:"default number of lines to disassemble"`
	SourceLines     int    `doc:"default number of source lines to display"`
	NextDisasmAddr  uint16 `doc:"address of next disassembly"`
	NextMemDumpAddr uint16 `doc:"address of next memory dump"`
}

func newSettings() *settings {
	return &settings{
		MemDumpWords: 16,
		DisasmLines:  10,
		SourceLines:  10,
	}
}

type settingsField struct {
	name  string
	index int
	kind  reflect.Kind
	typ   reflect.Type
	doc   string
}

var (
	settingsTree   = prefixtree.New[*settingsField]()
	settingsFields []settingsField
)

func init() {
	settingsType := reflect.TypeOf(settings{})
	settingsFields = make([]settingsField, settingsType.NumField())
	for i := 0; i < len(settingsFields); i++ {
		f := settingsType.Field(i)
		doc, _ := f.Tag.Lookup("doc")
		settingsFields[i] = settingsField{
			name:  f.Name,
			index: i,
			kind:  f.Type.Kind(),
			typ:   f.Type,
			doc:   doc,
		}
		settingsTree.Add(strings.ToLower(f.Name), &settingsFields[i])
	}
}

func (s *settings) Display(w io.Writer) {
	value := reflect.ValueOf(s).Elem()
	for i, f := range settingsFields {
		v := value.Field(i)
		var out string
		switch f.kind {
		case reflect.Uint16:
			out = fmt.Sprintf("    %-18s x%04X", f.name, uint16(v.Uint()))
		case reflect.Bool:
			out = fmt.Sprintf("    %-18s %v", f.name, v.Bool())
		default:
			out = fmt.Sprintf("    %-18s %v", f.name, v)
		}
		fmt.Fprintf(w, "%-30s (%s)\n", out, f.doc)
	}
}

func (s *settings) Set(key string, value any) error {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return err
	}

	vIn := reflect.ValueOf(value)
	if (f.kind == reflect.String) != (vIn.Kind() == reflect.String) || !vIn.Type().ConvertibleTo(f.typ) {
		return errors.New("invalid type")
	}

	reflect.ValueOf(s).Elem().Field(f.index).Set(vIn.Convert(f.typ))
	return nil
}
