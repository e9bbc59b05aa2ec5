package file

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/logger"
)

// promptExt is the file extension of prompt templates.
const promptExt = ".tmpl"

//go:embed prompts/*.tmpl
var defaultPromptFS embed.FS

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads section prompt templates from user-editable files on disk,
// falling back to the defaults embedded in the binary.
//
// The store initialises lazily: the directory and default files are only
// created on the first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// DefaultPrompt returns the embedded template for name.
func DefaultPrompt(name string) (string, bool) {
	data, err := defaultPromptFS.ReadFile("prompts/" + name + promptExt)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// NewPromptStore creates a file-based prompt store.
// If promptDir is empty, defaults to ~/.epicrisis/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".epicrisis", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name. User files win over
// embedded defaults; unknown names return domain.ErrNotFound.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := DefaultPrompt(name); ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil {
		def, ok := DefaultPrompt(name)
		if !ok {
			return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
		}
		prompt = def
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Watch reloads the cache whenever a template in the prompt directory
// changes. It returns once the watcher is running; the watcher stops when
// ctx is cancelled.
func (s *PromptStore) Watch(ctx context.Context) error {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return s.initErr
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	if err := watcher.Add(s.promptDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.promptDir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if s.handleEvent(event) {
					logger.Debug("Prompt %s changed, cache cleared", filepath.Base(event.Name))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Prompt watcher: %v", err)
			}
		}
	}()
	return nil
}

// handleEvent clears the cache for template changes and reports whether it did.
// Chmod-only events, hidden files and non-template files are ignored.
func (s *PromptStore) handleEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || filepath.Ext(base) != promptExt {
		return false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	s.Reload()
	return true
}

// initialise creates the prompt directory and writes any missing defaults.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for _, name := range driven.PromptNames() {
		content, ok := DefaultPrompt(name)
		if !ok {
			continue
		}
		path := filepath.Join(s.promptDir, name+promptExt)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+promptExt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	var b strings.Builder
	b.WriteString("# Epicrisis Prompts\n\n")
	b.WriteString("Section prompt templates used when drafting an EPC.\n\n## Files\n\n")
	for _, name := range driven.PromptNames() {
		fmt.Fprintf(&b, "- `%s%s`\n", name, promptExt)
	}
	b.WriteString(`
## Customisation

Templates use Go text/template syntax. Useful fields:

- ` + "`{{.Key}}`" + ` - JSON key the section is answered under
- ` + "`{{.Patient.Age}}`, `{{.Patient.Sex}}`, `{{.Patient.StayDays}}`" + ` - demographics
- ` + "`{{.Death.Line}}`" + ` - authoritative death line, when the patient died
- ` + "`{{.Text}}`, `{{.Admission}}`" + ` - clinical context
- ` + "`{{range .Exemplars}}{{.Content}}{{end}}`" + ` - validated examples

Deleting a file restores the built-in default on next start.
`)
	return os.WriteFile(path, []byte(b.String()), 0600)
}
