// Package render builds device configuration from a template and a YAML variables file.
package render

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v2"
)

// LoadVars reads a YAML variables file.
func LoadVars(path string) (map[string]interface{}, error) {
	buf, errRead := ioutil.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("LoadVars: read: %v", errRead)
	}

	vars := map[string]interface{}{}

	if errYaml := yaml.Unmarshal(buf, &vars); errYaml != nil {
		return nil, fmt.Errorf("LoadVars: parse: %s: %v", path, errYaml)
	}

	return vars, nil
}

// Render executes the template file against vars.
// A key referenced by the template but missing from vars is an error.
func Render(templatePath string, vars map[string]interface{}) (string, error) {
	t, errParse := template.New(filepath.Base(templatePath)).Option("missingkey=error").ParseFiles(templatePath)
	if errParse != nil {
		return "", fmt.Errorf("Render: parse: %v", errParse)
	}

	var buf bytes.Buffer
	if errExec := t.Execute(&buf, vars); errExec != nil {
		return "", fmt.Errorf("Render: %s: %v", templatePath, errExec)
	}

	return buf.String(), nil
}

// File loads vars and renders the template in one step.
func File(templatePath, varsPath string) (string, error) {
	vars, errVars := LoadVars(varsPath)
	if errVars != nil {
		return "", errVars
	}
	return Render(templatePath, vars)
}

// Lines splits rendered configuration into commands, dropping blank lines.
func Lines(config string) []string {
	var lines []string
	for _, l := range strings.Split(config, "\n") {
		l = strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
