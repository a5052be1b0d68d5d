// Package factory builds workflow specs, catalog configuration, and run
// contexts from declarative workflow files.
package factory

import (
	"fmt"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"

	"github.com/eleven-am/meandra/internal/domain"
)

// Workflow is everything a workflow file declares: the spec itself, the
// catalog entries it relies on, and the base run context. The spec is
// validated here; the runner validates again before planning.
type Workflow struct {
	Spec    *domain.WorkflowSpec
	Catalog domain.CatalogConfig
	Run     *domain.RunContext
}

// LoadFile reads and parses a YAML workflow file.
func LoadFile(path string) (*Workflow, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("load workflow file %s: %w", path, err)
	}
	return build(k)
}

// LoadBytes parses an in-memory YAML workflow document.
func LoadBytes(data []byte) (*Workflow, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse workflow document: %w", err)
	}
	return build(k)
}

func build(k *koanf.Koanf) (*Workflow, error) {
	if !k.Exists("workflow") {
		return nil, domain.NewConfigurationError("", "workflow file declares no workflow section")
	}
	spec, err := parseWorkflow(k.Get("workflow"), "workflow")
	if err != nil {
		return nil, err
	}

	out := &Workflow{Spec: spec, Run: domain.NewRunContext("")}
	if k.Exists("catalog") {
		out.Catalog, err = parseCatalog(k.Get("catalog"))
		if err != nil {
			return nil, err
		}
	}
	if k.Exists("run") {
		out.Run, err = parseRun(k.Get("run"))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseWorkflow(raw interface{}, path string) (*domain.WorkflowSpec, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, domain.NewConfigurationError("", "%s must be a mapping", path)
	}
	id, err := optionalString(m, "id", path)
	if err != nil {
		return nil, err
	}
	nodesRaw, ok := m["nodes"]
	if !ok {
		return nil, domain.NewConfigurationError("", "%s declares no nodes", path)
	}
	nodes, err := parseNodes(nodesRaw, path+".nodes")
	if err != nil {
		return nil, err
	}
	return domain.NewWorkflowSpec(id, nodes)
}

func parseNodes(raw interface{}, path string) ([]domain.NodeDescriptor, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, domain.NewConfigurationError("", "%s must be a list", path)
	}
	nodes := make([]domain.NodeDescriptor, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, domain.NewConfigurationError("", "%s[%d] must be a mapping", path, i)
		}
		node, err := parseNode(m, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseNode(m map[string]interface{}, path string) (domain.NodeDescriptor, error) {
	var n domain.NodeDescriptor
	for key := range m {
		switch key {
		case "id", "kind", "params", "inputs", "outputs", "when", "after", "workflow":
		default:
			return n, domain.NewConfigurationError("", "%s has unknown field %q", path, key)
		}
	}

	var err error
	if n.ID, err = optionalString(m, "id", path); err != nil {
		return n, err
	}
	if n.Kind, err = optionalString(m, "kind", path); err != nil {
		return n, err
	}
	if raw, ok := m["params"]; ok && raw != nil {
		params, ok := raw.(map[string]interface{})
		if !ok {
			return n, domain.NewConfigurationError(n.ID, "%s.params must be a mapping", path)
		}
		n.Params = params
	}
	if n.InputKeys, err = stringOrList(m["inputs"], path+".inputs"); err != nil {
		return n, err
	}
	if n.OutputKeys, err = stringOrList(m["outputs"], path+".outputs"); err != nil {
		return n, err
	}
	if n.When, err = stringOrList(m["when"], path+".when"); err != nil {
		return n, err
	}
	if n.After, err = stringOrList(m["after"], path+".after"); err != nil {
		return n, err
	}
	if raw, ok := m["workflow"]; ok && raw != nil {
		sub, err := parseWorkflow(raw, path+".workflow")
		if err != nil {
			return n, err
		}
		n.SubWorkflow = sub
	}
	return n, nil
}

func parseCatalog(raw interface{}) (domain.CatalogConfig, error) {
	var cfg domain.CatalogConfig
	m, ok := raw.(map[string]interface{})
	if !ok {
		return cfg, domain.NewConfigurationError("", "catalog must be a mapping")
	}

	var err error
	if cfg.BaseDir, err = optionalString(m, "base_dir", "catalog"); err != nil {
		return cfg, err
	}
	if cfg.DefaultFormat, err = optionalString(m, "default_format", "catalog"); err != nil {
		return cfg, err
	}

	raw, ok = m["entries"]
	if !ok || raw == nil {
		return cfg, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return cfg, domain.NewConfigurationError("", "catalog.entries must be a list")
	}
	for i, item := range list {
		em, ok := item.(map[string]interface{})
		if !ok {
			return cfg, domain.NewConfigurationError("", "catalog.entries[%d] must be a mapping", i)
		}
		path := fmt.Sprintf("catalog.entries[%d]", i)
		var entry domain.CatalogEntry
		if entry.Key, err = optionalString(em, "key", path); err != nil {
			return cfg, err
		}
		if entry.Location, err = optionalString(em, "location", path); err != nil {
			return cfg, err
		}
		if entry.Format, err = optionalString(em, "format", path); err != nil {
			return cfg, err
		}
		if err := entry.Validate(); err != nil {
			return cfg, domain.NewConfigurationError("", "%s: %v", path, err)
		}
		cfg.Entries = append(cfg.Entries, entry)
	}
	return cfg, nil
}

func parseRun(raw interface{}) (*domain.RunContext, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, domain.NewConfigurationError("", "run must be a mapping")
	}

	id, err := optionalString(m, "id", "run")
	if err != nil {
		return nil, err
	}
	rc := domain.NewRunContext(id)

	if raw, ok := m["flags"]; ok && raw != nil {
		fm, ok := raw.(map[string]interface{})
		if !ok {
			return nil, domain.NewConfigurationError("", "run.flags must be a mapping")
		}
		flags := make(map[string]bool, len(fm))
		for name, value := range fm {
			b, ok := value.(bool)
			if !ok {
				return nil, domain.NewConfigurationError("", "run.flags.%s must be a boolean", name)
			}
			flags[name] = b
		}
		rc.Flags = flags
	}

	if raw, ok := m["params"]; ok && raw != nil {
		pm, ok := raw.(map[string]interface{})
		if !ok {
			return nil, domain.NewConfigurationError("", "run.params must be a mapping")
		}
		rc.Params = pm
	}

	if raw, ok := m["inputs"]; ok && raw != nil {
		im, ok := raw.(map[string]interface{})
		if !ok {
			return nil, domain.NewConfigurationError("", "run.inputs must be a mapping")
		}
		rc.Inputs = im
	}

	if raw, ok := m["placeholders"]; ok && raw != nil {
		pm, ok := raw.(map[string]interface{})
		if !ok {
			return nil, domain.NewConfigurationError("", "run.placeholders must be a mapping")
		}
		placeholders := make(map[string]string, len(pm))
		for name, value := range pm {
			s, ok := value.(string)
			if !ok {
				return nil, domain.NewConfigurationError("", "run.placeholders.%s must be a string", name)
			}
			placeholders[name] = s
		}
		rc.Placeholders = placeholders
	}
	return rc, nil
}

func optionalString(m map[string]interface{}, field, path string) (string, error) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.NewConfigurationError("", "%s.%s must be a string", path, field)
	}
	return s, nil
}

func stringOrList(raw interface{}, path string) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, domain.NewConfigurationError("", "%s[%d] must be a string", path, i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, domain.NewConfigurationError("", "%s must be a string or a list of strings", path)
	}
}
