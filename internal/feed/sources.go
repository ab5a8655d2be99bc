package feed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/xurls/v2"
)

type Kind string

const (
	KindRSS      Kind = "rss"
	KindPage     Kind = "page"
	KindTelegram Kind = "telegram"
)

// Source describes where a fetcher takes its candidates from.
type Source struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
	URL  string `yaml:"url"`
	// ItemSelector picks article links on a page source.
	ItemSelector string `yaml:"itemSelector"`
	Limit        int    `yaml:"limit"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// DefaultSources are used when no sources file is configured.
func DefaultSources() []Source {
	return []Source{
		{Name: "Habr", Kind: KindRSS, URL: "https://habr.com/ru/rss/hubs/artificial_intelligence/articles/"},
		{Name: "Vc.ru", Kind: KindRSS, URL: "https://vc.ru/rss/all"},
		{
			Name:         "РБК Tech",
			Kind:         KindPage,
			URL:          "https://www.rbc.ru/technology_and_media/",
			ItemSelector: "a.item__link",
		},
	}
}

// LoadSources reads a YAML file with a top-level `sources` list.
func LoadSources(path string) ([]Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err = yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("unmarshal sources file: %w", err)
	}

	if len(file.Sources) == 0 {
		return nil, errors.New("sources file has no sources")
	}

	var errs []error
	sources := make([]Source, 0, len(file.Sources))

	for i, src := range file.Sources {
		src = src.normalized()
		if err = src.validate(); err != nil {
			errs = append(errs, fmt.Errorf("source #%d: %w", i+1, err))
			continue
		}
		sources = append(sources, src)
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return sources, nil
}

func (s Source) normalized() Source {
	s.Name = strings.TrimSpace(s.Name)
	s.URL = strings.TrimSpace(s.URL)
	s.ItemSelector = strings.TrimSpace(s.ItemSelector)
	s.Kind = Kind(strings.ToLower(strings.TrimSpace(string(s.Kind))))

	if s.Kind == "" {
		s.Kind = KindRSS
	}
	if s.Limit <= 0 {
		s.Limit = defaultItemLimit
	}
	if s.Name == "" {
		s.Name = s.URL
	}

	return s
}

func (s Source) validate() error {
	httpURLRe, err := xurls.StrictMatchingScheme("https?://")
	if err != nil {
		return fmt.Errorf("create regexp: %w", err)
	}

	if s.URL == "" || httpURLRe.FindString(s.URL) != s.URL {
		return fmt.Errorf("invalid URL %q", s.URL)
	}

	switch s.Kind {
	case KindRSS:
	case KindTelegram:
		if ok, _ := isTelegramChannelURL(s.URL); !ok {
			return fmt.Errorf("not a Telegram channel URL %q", s.URL)
		}
	case KindPage:
		if s.ItemSelector == "" {
			return errors.New("page source requires itemSelector")
		}
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}

	return nil
}
