// Command tau renders a single template file against a JSON or YAML
// context file, printing the result to stdout or a diagnostic to
// stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/tauleaf/tau/internal/value"
	"github.com/tauleaf/tau/pkg/engine"
	"github.com/tauleaf/tau/pkg/source"
)

func main() {
	root := flag.String("root", ".", "template root directory")
	ctxPath := flag.String("context", "", "JSON or YAML file supplying the render context")
	sourceName := flag.String("source", "main", "name the template root is registered under")
	timeout := flag.Duration("timeout", 0, "render timeout (0 uses the engine default)")
	strict := flag.Bool("strict", false, "abort on undeclared context variables instead of decaying to nil")
	noColor := flag.Bool("no-color", false, "disable diagnostic color even on a terminal")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <template>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	templatePath := flag.Arg(0)

	fs, err := source.NewFileSystem(*sourceName, *root)
	if err != nil {
		fail(*noColor, "open root %q: %s", *root, err)
	}

	eng, err := engine.New(map[string]engine.Source{*sourceName: fs})
	if err != nil {
		fail(*noColor, "initialize engine: %s", err)
	}

	vars, err := loadContext(*ctxPath)
	if err != nil {
		fail(*noColor, "load context: %s", err)
	}

	name, err := filepath.Rel(*root, templatePath)
	if err != nil || strings.HasPrefix(name, "..") {
		name = filepath.Base(templatePath)
	}

	out, err := eng.Render(context.Background(), *sourceName, name, vars, engine.Options{
		Timeout: *timeout,
		MissingVariableThrows: *strict,
	})
	if err != nil {
		fail(*noColor, "render %s: %s", name, err)
	}
	fmt.Print(out)
}

// loadContext decodes a JSON or YAML object into a render Context,
// reshaping each decoded field into a value.Value.
func loadContext(path string) (engine.Context, error) {
	vars := engine.Context{}
	if path == "" {
		return vars, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	for k, v := range raw {
		vars[k] = fromInterface(v)
	}
	return vars, nil
}

func fromInterface(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.TrueNil
	case bool:
		return value.Bool(t)
	case string:
		return value.String(t)
	case int:
		return value.Int(int64(t))
	case int64:
		return value.Int(t)
	case float64:
		if t == float64(int64(t)) {
			return value.Int(int64(t))
		}
		return value.Double(t)
	case []interface{}:
		items := make([]value.Value, len(t))
		for i, e := range t {
			items[i] = fromInterface(e)
		}
		return value.Array(items)
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		vals := make(map[string]value.Value, len(t))
		for k, e := range t {
			keys = append(keys, k)
			vals[k] = fromInterface(e)
		}
		return value.Dictionary(keys, vals)
	// yaml.v3 decodes nested maps as map[string]interface{} too, but a
	// top-level map[interface{}]interface{} can appear from some yaml
	// documents; normalize it the same way.
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(t))
		vals := make(map[string]value.Value, len(t))
		for k, e := range t {
			ks := fmt.Sprintf("%v", k)
			keys = append(keys, ks)
			vals[ks] = fromInterface(e)
		}
		return value.Dictionary(keys, vals)
	default:
		return value.TrueNil
	}
}

func fail(noColor bool, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !noColor && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\x1b[31merror:\x1b[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	os.Exit(1)
}

