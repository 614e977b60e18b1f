package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/scanops/console/internal/domain"
	"gopkg.in/yaml.v3"
)

var defaultCatalogPaths = []string{
	"./tools.yaml",
	"/etc/scanconsole/tools.yaml",
}

// builtin is used when no catalog file is found.
var builtin = []domain.Tool{
	{Name: "nmap", DisplayName: "Nmap", Module: "NMAP", PreviewPath: "/api/v1/scans/nmap/preview", StartPath: "/api/v1/scans/nmap/start", TargetParam: "target"},
	{Name: "masscan", DisplayName: "Masscan", Module: "MASSCAN", PreviewPath: "/api/v1/scans/masscan/preview", StartPath: "/api/v1/scans/masscan/start", TargetParam: "target"},
	{Name: "subfinder", DisplayName: "Subfinder", Module: "SUBFINDER", PreviewPath: "/api/v1/recon/subfinder/preview", StartPath: "/api/v1/recon/subfinder/start", TargetParam: "domain"},
	{Name: "amass", DisplayName: "Amass", Module: "AMASS", PreviewPath: "/api/v1/recon/amass/preview", StartPath: "/api/v1/recon/amass/start", TargetParam: "domain"},
	{Name: "nuclei", DisplayName: "Nuclei", Module: "NUCLEI", PreviewPath: "/api/v1/scans/nuclei/preview", StartPath: "/api/v1/scans/nuclei/start", TargetParam: "target"},
	{Name: "ffuf", DisplayName: "FFUF", Module: "FFUF", PreviewPath: "/api/v1/web/ffuf/preview", StartPath: "/api/v1/web/ffuf/start", TargetParam: "url"},
}

type file struct {
	Tools []domain.Tool `yaml:"tools"`
}

// Catalog maps tool names to their backend endpoints.
type Catalog struct {
	tools map[string]domain.Tool
	names []string
}

func New(tools []domain.Tool) (*Catalog, error) {
	c := &Catalog{tools: make(map[string]domain.Tool, len(tools))}
	for _, t := range tools {
		t.Name = strings.ToLower(strings.TrimSpace(t.Name))
		if t.Name == "" {
			return nil, fmt.Errorf("tool without name")
		}
		if t.PreviewPath == "" || t.StartPath == "" {
			return nil, fmt.Errorf("tool %s: preview_path and start_path are required", t.Name)
		}
		if _, dup := c.tools[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %s", t.Name)
		}
		if t.DisplayName == "" {
			t.DisplayName = t.Name
		}
		if t.Module == "" {
			t.Module = strings.ToUpper(t.Name)
		}
		if t.TargetParam == "" {
			t.TargetParam = "target"
		}
		c.tools[t.Name] = t
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Builtin returns the catalog compiled into the binary.
func Builtin() *Catalog {
	c, err := New(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a YAML catalog from path, or from the default locations when path
// is empty. With no file anywhere the built-in catalog is returned.
func Load(path string) (*Catalog, error) {
	configPath := path
	if configPath == "" {
		for _, p := range defaultCatalogPaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}
	if configPath == "" {
		return Builtin(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Tools) == 0 {
		return nil, fmt.Errorf("catalog has no tools")
	}
	return New(f.Tools)
}

func (c *Catalog) Lookup(name string) (domain.Tool, bool) {
	t, ok := c.tools[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

func (c *Catalog) List() []domain.Tool {
	out := make([]domain.Tool, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.tools[name])
	}
	return out
}
