package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/objgraph/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect models",
	}
	cmd.AddCommand(newDescribeCmd(a))
	return cmd
}

func newDescribeCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Validate a YAML model and print its entities and relationships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = a.cfg.GetString(cfgKeyModel)
			}
			sc, err := loadModel(file)
			if err != nil {
				return err
			}
			return describe(cmd.OutOrStdout(), sc, a.jsonOutput)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "model file (default: --model)")
	return cmd
}

type entityInfo struct {
	Name          string             `json:"name"`
	Attributes    []attributeInfo    `json:"attributes"`
	Relationships []relationshipInfo `json:"relationships,omitempty"`
}

type attributeInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Optional  bool   `json:"optional,omitempty"`
	Indexed   bool   `json:"indexed,omitempty"`
	Immutable bool   `json:"immutable,omitempty"`
}

type relationshipInfo struct {
	Name        string `json:"name"`
	Destination string `json:"destination"`
	Cardinality string `json:"cardinality"`
	Inverse     string `json:"inverse"`
	DeleteRule  string `json:"deleteRule"`
	MaxCount    int    `json:"maxCount,omitempty"`
}

func describe(w io.Writer, sc *schema.Schema, asJSON bool) error {
	if !asJSON {
		_, err := io.WriteString(w, sc.String())
		return err
	}
	var out []entityInfo
	for _, e := range sc.Entities() {
		info := entityInfo{Name: e.Name()}
		for _, attr := range e.Attributes() {
			info.Attributes = append(info.Attributes, attributeInfo{
				Name:      attr.Name(),
				Type:      attr.Type().String(),
				Optional:  attr.Optional(),
				Indexed:   attr.Indexed(),
				Immutable: attr.Immutable(),
			})
		}
		for _, r := range e.Relationships() {
			info.Relationships = append(info.Relationships, relationshipInfo{
				Name:        r.Name(),
				Destination: r.Destination(),
				Cardinality: r.Cardinality().String(),
				Inverse:     r.Inverse().Name(),
				DeleteRule:  r.DeleteRule().String(),
				MaxCount:    r.MaxCount(),
			})
		}
		out = append(out, info)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return nil
}
