// Package clusterfile reads declarative cluster definitions from YAML
// files. Files are evaluated as text templates first, so definitions can
// pull in environment values and invocation parameters.
package clusterfile

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/dataops-ch/emrctl/cluster"
)

type ReadOptions struct {
	// Parameters available to the template as {{ .Params.key }}
	Params map[string]string
}

// UnmarshalError carries the evaluated source so the caller can show what
// the template actually produced.
type UnmarshalError struct {
	error
	Source string
}

func Read(file string, options ReadOptions) (*cluster.Spec, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	source, err := evaluateTemplate(string(buf), options)
	if err != nil {
		return nil, fmt.Errorf("evaluate template: %w", err)
	}

	spec, err := Parse([]byte(source))
	if err != nil {
		return nil, UnmarshalError{err, source}
	}
	return spec, nil
}

// Parse decodes a cluster spec from YAML. Unknown keys are rejected: a
// typo in a field name must not silently produce a different cluster.
func Parse(source []byte) (*cluster.Spec, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(source))
	decoder.KnownFields(true)

	var spec cluster.Spec
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &spec, nil
}

type TemplateData struct {
	Env    map[string]string
	Params map[string]string
}

func evaluateTemplate(source string, options ReadOptions) (string, error) {
	tmpl, err := template.New("clusterfile").Funcs(template.FuncMap{
		"base64": func(s string) string {
			return base64.StdEncoding.EncodeToString([]byte(s))
		},
		"env": func(key string) string {
			return os.Getenv(key)
		},
		"json": func(v any) (string, error) {
			buf, err := json.Marshal(v)
			return string(buf), err
		},
		"split": func(sep string, s string) []string {
			return strings.Split(s, sep)
		},
	}).Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := TemplateData{
		Env:    lo.SliceToMap(os.Environ(), func(env string) (key, val string) { key, val, _ = strings.Cut(env, "="); return }),
		Params: options.Params,
	}

	var output strings.Builder
	if err := tmpl.Execute(&output, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return output.String(), nil
}
