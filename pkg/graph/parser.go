package graph

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TestingNodeFactory builds a testing node (e.g. a prompt injection node)
// from its YAML configuration. The factory lives outside this package so
// graph parsing stays free of any adapter dependencies.
type TestingNodeFactory func(id, name string, config map[string]any) (*Node, error)

// Registry resolves named transforms referenced by graph definition files.
type Registry struct {
	transforms  map[string]TransformFunc
	testingNode TestingNodeFactory
}

// NewRegistry creates an empty transform registry.
func NewRegistry() *Registry {
	return &Registry{
		transforms: make(map[string]TransformFunc),
	}
}

// Register binds a name to a transform function.
func (r *Registry) Register(name string, fn TransformFunc) {
	r.transforms[name] = fn
}

// RegisterTestingNodeFactory sets the factory used for nodes declared with
// type "testing".
func (r *Registry) RegisterTestingNodeFactory(factory TestingNodeFactory) {
	r.testingNode = factory
}

// Transform looks up a registered transform by name.
func (r *Registry) Transform(name string) (TransformFunc, bool) {
	fn, ok := r.transforms[name]
	return fn, ok
}

// yamlGraph represents the YAML structure before conversion to domain objects
type yamlGraph struct {
	Name  string     `yaml:"name"`
	Nodes []yamlNode `yaml:"nodes,omitempty"`
	Edges []yamlEdge `yaml:"edges,omitempty"`
}

// yamlNode represents a node in YAML with type-specific fields
type yamlNode struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type,omitempty"`

	// Ordinary node fields
	Transform string `yaml:"transform,omitempty"`

	// Testing node fields, passed through to the factory
	Config map[string]any `yaml:"config,omitempty"`
}

// yamlEdge represents an edge in YAML
type yamlEdge struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition,omitempty"`
}

// Parse parses a graph from YAML bytes, resolving named transforms through
// the registry. The start and end sentinels are implicit; definition files
// reference them as __start__ and __end__ in edges only.
func Parse(yamlBytes []byte, registry *Registry) (*Graph, error) {
	if len(yamlBytes) == 0 {
		return nil, errors.New("empty YAML input")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}

	var yg yamlGraph
	if err := yaml.Unmarshal(yamlBytes, &yg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if yg.Name == "" {
		return nil, errors.New("missing required field: name")
	}

	g := New(yg.Name)

	for _, yn := range yg.Nodes {
		node, err := parseNode(yn, registry)
		if err != nil {
			return nil, fmt.Errorf("failed to parse node '%s': %w", yn.ID, err)
		}
		if err := g.AddNode(node); err != nil {
			return nil, fmt.Errorf("failed to add node: %w", err)
		}
	}

	for _, ye := range yg.Edges {
		edge := &Edge{
			Source:      ye.From,
			Target:      ye.To,
			Conditional: ye.Condition != "",
			Condition:   ye.Condition,
		}
		if err := g.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("failed to add edge: %w", err)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}

	return g, nil
}

// ParseFile parses a graph from a YAML file.
func ParseFile(filePath string, registry *Registry) (*Graph, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, registry)
}

// parseNode converts a yamlNode to a Node using the registry.
func parseNode(yn yamlNode, registry *Registry) (*Node, error) {
	if yn.ID == "" {
		return nil, errors.New("node ID cannot be empty")
	}

	nodeType := yn.Type
	if nodeType == "" {
		nodeType = string(NodeTypeOrdinary)
	}

	switch NodeType(nodeType) {
	case NodeTypeOrdinary:
		if yn.Transform == "" {
			return nil, fmt.Errorf("node '%s': transform field is required", yn.ID)
		}
		fn, ok := registry.Transform(yn.Transform)
		if !ok {
			return nil, fmt.Errorf("node '%s': unknown transform %q", yn.ID, yn.Transform)
		}
		return NewNode(yn.ID, yn.Name, fn), nil

	case NodeTypeTesting:
		if registry.testingNode == nil {
			return nil, fmt.Errorf("node '%s': no testing node factory registered", yn.ID)
		}
		return registry.testingNode(yn.ID, yn.Name, yn.Config)

	default:
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
}
