// Package site holds the café page content: narrative, menu, gallery and
// access details. Content is YAML; a default copy is embedded.
package site

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var defaultYAML []byte

// Content block IDs. Each gets its own visibility trigger on the page.
const (
	BlockHero    = "hero"
	BlockConcept = "concept"
	BlockMenu    = "menu"
	BlockGallery = "gallery"
	BlockAccess  = "access"
	BlockFooter  = "footer"
)

// Blocks lists the page's content blocks in page order.
func Blocks() []string {
	return []string{BlockHero, BlockConcept, BlockMenu, BlockGallery, BlockAccess, BlockFooter}
}

// Site is the full page content.
type Site struct {
	Name      string    `yaml:"name" json:"name"`
	Reading   string    `yaml:"reading" json:"reading"`
	Tagline   string    `yaml:"tagline" json:"tagline"`
	Copyright string    `yaml:"copyright" json:"copyright"`
	Images    Images    `yaml:"images" json:"images"`
	Nav       []NavItem `yaml:"nav" json:"nav"`
	Concept   Concept   `yaml:"concept" json:"concept"`
	Chat      ChatCopy  `yaml:"chat" json:"chat"`
	Menu      Menu      `yaml:"menu" json:"menu"`
	Gallery   Gallery   `yaml:"gallery" json:"gallery"`
	Access    Access    `yaml:"access" json:"access"`
}

type Images struct {
	Hero  string `yaml:"hero" json:"hero"`
	Light string `yaml:"light" json:"light"`
}

type NavItem struct {
	Block string `yaml:"block" json:"block"`
	Label string `yaml:"label" json:"label"`
}

type Concept struct {
	Paragraphs []string `yaml:"paragraphs" json:"paragraphs"`
	Quote      string   `yaml:"quote" json:"quote"`
	QuoteNote  string   `yaml:"quote_note" json:"quote_note"`
}

// ChatCopy is the chat widget's fixed wording.
type ChatCopy struct {
	Title       string   `yaml:"title" json:"title"`
	Subtitle    string   `yaml:"subtitle" json:"subtitle"`
	Greeting    []string `yaml:"greeting" json:"greeting"`
	Placeholder string   `yaml:"placeholder" json:"placeholder"`
	OpenLabel   string   `yaml:"open_label" json:"open_label"`
	CloseLabel  string   `yaml:"close_label" json:"close_label"`
}

type Menu struct {
	Lead     string        `yaml:"lead" json:"lead"`
	Note     string        `yaml:"note" json:"note"`
	Sections []MenuSection `yaml:"sections" json:"sections"`
}

type MenuSection struct {
	Title string     `yaml:"title" json:"title"`
	Items []MenuItem `yaml:"items" json:"items"`
}

type MenuItem struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Price       string `yaml:"price" json:"price"`
}

type Gallery struct {
	Title  string  `yaml:"title" json:"title"`
	Photos []Photo `yaml:"photos" json:"photos"`
}

type Photo struct {
	URL     string `yaml:"url" json:"url"`
	Alt     string `yaml:"alt" json:"alt"`
	Caption string `yaml:"caption,omitempty" json:"caption,omitempty"`
	Note    string `yaml:"note,omitempty" json:"note,omitempty"`
}

type Access struct {
	Title       string `yaml:"title" json:"title"`
	PostalCode  string `yaml:"postal_code" json:"postal_code"`
	Address     string `yaml:"address" json:"address"`
	AddressNote string `yaml:"address_note" json:"address_note"`
	Hours       string `yaml:"hours" json:"hours"`
	HoursNote   string `yaml:"hours_note" json:"hours_note"`
	MapURL      string `yaml:"map_url" json:"map_url"`
	Links       []Link `yaml:"links" json:"links"`
}

type Link struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Default returns the embedded content.
func Default() (*Site, error) {
	return Parse(defaultYAML)
}

// Load reads content from path, or the embedded default when path is empty.
func Load(path string) (*Site, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading site file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML content. Unknown fields are rejected.
func Parse(data []byte) (*Site, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	var s Site
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing site content: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that the content can render a complete page.
func (s *Site) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.MenuItemCount() == 0 {
		errs = append(errs, errors.New("menu needs at least one item"))
	}

	known := make(map[string]bool)
	for _, b := range Blocks() {
		known[b] = true
	}
	seen := make(map[string]bool)
	for _, n := range s.Nav {
		if !known[n.Block] {
			errs = append(errs, fmt.Errorf("nav: unknown block %q", n.Block))
		}
		if seen[n.Block] {
			errs = append(errs, fmt.Errorf("nav: duplicate block %q", n.Block))
		}
		seen[n.Block] = true
	}
	for i, sec := range s.Menu.Sections {
		for j, item := range sec.Items {
			if strings.TrimSpace(item.Name) == "" {
				errs = append(errs, fmt.Errorf("menu.sections[%d].items[%d]: name is required", i, j))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid site content: %w", err)
	}
	return nil
}

// MenuItemCount returns the number of items across all menu sections.
func (s *Site) MenuItemCount() int {
	n := 0
	for _, sec := range s.Menu.Sections {
		n += len(sec.Items)
	}
	return n
}
