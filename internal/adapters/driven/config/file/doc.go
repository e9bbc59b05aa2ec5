// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration at ~/.epicrisis/config.toml
//   - PromptStore: section prompt templates with embedded defaults and an
//     optional fsnotify watcher
package file
