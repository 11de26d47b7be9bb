package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

func (f *OutputFormat) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

func (f *OutputFormat) Set(v string) error {
	for _, format := range []OutputFormat{OutputFormatTable, OutputFormatJSON, OutputFormatYAML} {
		if v == string(format) {
			*f = format
			return nil
		}
	}
	return errors.New(`must be one of "table", "json", or "yaml"`)
}

func (f *OutputFormat) Type() string {
	return "format"
}

type RenderOptions struct {
	Format OutputFormat
}

func addRenderOptions(cmd *cobra.Command, options *RenderOptions, defaultFormat OutputFormat) {
	options.Format = defaultFormat
	cmd.Flags().VarP(&options.Format, "output", "o", "output format (table, json, yaml)")
}

type OutputRenderer interface {
	Render(resources any, options *RenderOptions) error
}

type DefaultRenderer struct {
	out io.Writer
}

func NewDefaultRenderer(out io.Writer) *DefaultRenderer {
	return &DefaultRenderer{out: out}
}

func (r *DefaultRenderer) Render(resources any, options *RenderOptions) error {
	switch options.Format {
	case OutputFormatJSON:
		return r.renderJSON(resources)
	case OutputFormatYAML:
		return r.renderYAML(resources)
	default:
		return r.renderTable(resources)
	}
}

func (r *DefaultRenderer) renderJSON(resources any) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resources)
}

// renderYAML goes through JSON so that field names and order follow the
// json tags, then switches the flow style JSON nodes to block style.
func (r *DefaultRenderer) renderYAML(resources any) error {
	data, err := json.Marshal(resources)
	if err != nil {
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	blockStyle(&node)

	encoder := yaml.NewEncoder(r.out)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return err
	}
	return encoder.Close()
}

func blockStyle(node *yaml.Node) {
	if node.Kind != yaml.ScalarNode {
		node.Style = 0
	} else if node.Style == yaml.DoubleQuotedStyle {
		node.Style = 0
	}
	for _, child := range node.Content {
		blockStyle(child)
	}
}

// renderTable prints a slice of structs with one column per json field.
// Anything else is printed as JSON.
func (r *DefaultRenderer) renderTable(resources any) error {
	value := reflect.ValueOf(resources)
	if value.Kind() != reflect.Slice {
		return r.renderJSON(resources)
	}

	elemType := value.Type().Elem()
	if elemType.Kind() == reflect.Pointer {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return r.renderJSON(resources)
	}

	var headers []string
	var fields []int
	for i := range elemType.NumField() {
		field := elemType.Field(i)
		name := columnName(field)
		if name == "" {
			continue
		}
		headers = append(headers, strings.ToUpper(name))
		fields = append(fields, i)
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...)
	for i := range value.Len() {
		elem := reflect.Indirect(value.Index(i))
		if !elem.IsValid() {
			continue
		}
		row := make([]string, len(fields))
		for j, field := range fields {
			row[j] = cellText(elem.Field(field).Interface())
		}
		t.Row(row...)
	}

	_, err := fmt.Fprintln(r.out, t.String())
	return err
}

func columnName(field reflect.StructField) string {
	if !field.IsExported() {
		return ""
	}
	if tag, ok := field.Tag.Lookup("table"); ok {
		if tag == "-" {
			return ""
		}
		return tag
	}
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

func cellText(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case bool, int, int64, float64:
		return fmt.Sprint(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
