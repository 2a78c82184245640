package hcl

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/cleangrid/internal/config"
	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Writer is the HCL-specific implementation of the config.Writer interface.
type Writer struct{}

// NewWriter creates a new HCL job definition writer.
func NewWriter() *Writer {
	return &Writer{}
}

var _ config.Writer = (*Writer)(nil)

// Write renders def as a single HCL document at CurrentFormatVersion.
// Property and column attributes are written in lexical order so the output
// is stable.
func (w *Writer) Write(ctx context.Context, def *config.JobDefinition, out io.Writer) error {
	f, err := w.render(def)
	if err != nil {
		return err
	}
	n, err := out.Write(hclwrite.Format(f.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to write job %q: %w", def.Name, err)
	}
	ctxlog.FromContext(ctx).Debug("HCL job written.", "job", def.Name, "bytes", n)
	return nil
}

func (w *Writer) render(def *config.JobDefinition) (*hclwrite.File, error) {
	f := hclwrite.NewEmptyFile()
	root := f.Body()
	root.SetAttributeValue("format_version", cty.NumberIntVal(config.CurrentFormatVersion))
	root.AppendNewline()

	job := root.AppendNewBlock("job", []string{def.Name}).Body()
	if def.Datastore != "" {
		job.SetAttributeValue("datastore", cty.StringVal(def.Datastore))
	}
	job.SetAttributeValue("table", cty.StringVal(def.Table))

	for _, sc := range def.SourceColumns {
		root.AppendNewline()
		body := root.AppendNewBlock("source_column", []string{sc.Name}).Body()
		body.SetAttributeValue("number", cty.NumberIntVal(int64(sc.Number)))
		typ := sc.Type
		if typ == cty.NilType {
			typ = cty.DynamicPseudoType
		}
		tokens, err := typeTokens(typ)
		if err != nil {
			return nil, fmt.Errorf("source column %q: %w", sc.Name, err)
		}
		body.SetAttributeRaw("type", tokens)
	}

	for _, c := range def.Components {
		root.AppendNewline()
		if err := writeComponent(root, c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeComponent(root *hclwrite.Body, c *config.Component) error {
	body := root.AppendNewBlock(c.Kind, []string{c.Descriptor, c.Name}).Body()

	var props []string
	for _, name := range sortedKeys(c.Properties) {
		if v := c.Properties[name]; !v.IsNull() {
			if !v.IsWhollyKnown() {
				return fmt.Errorf("component %q: property %q has an unknown value", c.Name, name)
			}
			props = append(props, name)
		}
	}
	if len(props) > 0 {
		pb := body.AppendNewBlock("properties", nil).Body()
		for _, name := range props {
			pb.SetAttributeValue(name, c.Properties[name])
		}
	}

	if len(c.Columns) > 0 {
		cb := body.AppendNewBlock("columns", nil).Body()
		for _, name := range sortedKeys(c.Columns) {
			refs := make([]cty.Value, len(c.Columns[name]))
			for i, ref := range c.Columns[name] {
				refs[i] = cty.StringVal(ref)
			}
			if len(refs) == 0 {
				cb.SetAttributeValue(name, cty.ListValEmpty(cty.String))
				continue
			}
			cb.SetAttributeValue(name, cty.ListVal(refs))
		}
	}

	if r := c.Requirement; r != nil {
		rb := body.AppendNewBlock("requires", nil).Body()
		rb.SetAttributeValue("component", cty.StringVal(r.Component))
		rb.SetAttributeValue("outcome", cty.StringVal(r.Outcome))
	}
	return nil
}
