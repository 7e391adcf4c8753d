// Package engines provides the synthesis backends for the streaming
// core: a piper subprocess engine for real speech and a deterministic
// mock engine for tests and offline runs, plus voice model discovery.
package engines

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/sahilm/fuzzy"
	"golang.org/x/text/language"
)

// Voice describes one installed piper voice model: an .onnx file with
// its sibling .onnx.json config.
type Voice struct {
	// Name is the full model name, such as "en_US-lessac-medium".
	Name string

	// Language is the model's language code, such as "en_US".
	Language string

	// Speaker is the voice name within the language, such as "lessac".
	Speaker string

	// Quality is the model grade: x_low, low, medium or high.
	Quality string

	// ModelPath is the absolute path to the .onnx file.
	ModelPath string

	// ConfigPath is the absolute path to the .onnx.json file.
	ConfigPath string

	// Size is the model file size in bytes.
	Size int64
}

// String returns the model name.
func (v Voice) String() string { return v.Name }

// DefaultVoiceDirs returns the directories searched for voice models
// when the config does not name one: ~/piper-models first, then the
// per-user data directories.
func DefaultVoiceDirs() []string {
	var dirs []string
	if home, err := homedir.Dir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "piper-models"))
	}

	scope := gap.NewScope(gap.User, "tts-streamer")
	if dataDirs, err := scope.DataDirs(); err == nil {
		for _, d := range dataDirs {
			dirs = append(dirs, filepath.Join(d, "voices"))
		}
	}
	return dirs
}

// DiscoverVoices walks the given directories for piper voice models.
// A model counts only if both the .onnx file and its .onnx.json are
// present. Missing directories are skipped, and the result is sorted
// by name. Paths may start with "~".
func DiscoverVoices(dirs ...string) ([]Voice, error) {
	var voices []Voice
	seen := make(map[string]bool)

	for _, dir := range dirs {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			continue
		}
		err = filepath.WalkDir(expanded, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".onnx") {
				return nil
			}

			configPath := path + ".json"
			if _, err := os.Stat(configPath); err != nil {
				return nil
			}

			v := parseVoice(path, configPath)
			if seen[v.Name] {
				return nil
			}
			seen[v.Name] = true

			if info, err := d.Info(); err == nil {
				v.Size = info.Size()
			}
			voices = append(voices, v)
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("scanning %s: %w", expanded, err)
		}
	}

	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	return voices, nil
}

// parseVoice splits a model filename into its language, speaker and
// quality parts. Piper names models LANG-SPEAKER-QUALITY; anything
// that does not fit keeps the whole base name as the speaker.
func parseVoice(modelPath, configPath string) Voice {
	base := strings.TrimSuffix(filepath.Base(modelPath), ".onnx")
	v := Voice{
		Name:       base,
		Speaker:    base,
		ModelPath:  modelPath,
		ConfigPath: configPath,
	}

	parts := strings.Split(base, "-")
	if len(parts) >= 3 {
		v.Language = parts[0]
		v.Quality = parts[len(parts)-1]
		v.Speaker = strings.Join(parts[1:len(parts)-1], "-")
	}
	return v
}

// SelectVoice resolves a user query against the discovered models.
// Resolution order: exact name match, fuzzy name match, then language
// match. The query "en" finds an en_US model when nothing closer
// exists.
func SelectVoice(voices []Voice, query string) (Voice, error) {
	if len(voices) == 0 {
		return Voice{}, errors.New("no voice models found, download piper voices into a voice directory")
	}
	if query == "" {
		return voices[0], nil
	}

	for _, v := range voices {
		if strings.EqualFold(v.Name, query) {
			return v, nil
		}
	}

	names := make([]string, len(voices))
	for i, v := range voices {
		names[i] = v.Name
	}
	if matches := fuzzy.Find(query, names); len(matches) > 0 {
		return voices[matches[0].Index], nil
	}

	if v, ok := matchLanguage(voices, query); ok {
		return v, nil
	}

	return Voice{}, fmt.Errorf("no voice matches %q, installed: %s", query, strings.Join(names, ", "))
}

// matchLanguage treats the query as a language tag and picks the
// closest model by language. Model names use underscores where BCP 47
// uses hyphens.
func matchLanguage(voices []Voice, query string) (Voice, bool) {
	want, err := language.Parse(strings.ReplaceAll(query, "_", "-"))
	if err != nil {
		return Voice{}, false
	}

	var tags []language.Tag
	var tagged []Voice
	for _, v := range voices {
		if v.Language == "" {
			continue
		}
		tag, err := language.Parse(strings.ReplaceAll(v.Language, "_", "-"))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		tagged = append(tagged, v)
	}
	if len(tags) == 0 {
		return Voice{}, false
	}

	_, index, conf := language.NewMatcher(tags).Match(want)
	if conf < language.High {
		return Voice{}, false
	}
	return tagged[index], true
}
