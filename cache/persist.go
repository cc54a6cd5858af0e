package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"gitlab.com/tozd/go/errors"
)

// keyJSON is the JSON-friendly representation of Key: Go map keys
// must be strings to round-trip through encoding/json, so Custom and
// I18n2 are serialized as arrays of {key, value} pairs instead.
type keyJSON struct {
	Language string `json:"language"`
	Wiki     string `json:"wiki"`
	Domain   string `json:"domain"`
}

type customEntry struct {
	Key   keyJSON           `json:"key"`
	Value map[string]string `json:"value"`
}

type i18n2Entry struct {
	Key   keyJSON           `json:"key"`
	Value map[string]string `json:"value"` // regex source strings
}

// fileSet is the on-disk shape of the four maps. Regex objects are
// stored as their source string, per spec.md §6.
type fileSet struct {
	MessageCache map[string][]string `json:"messagecache"`
	I18n         map[string][]string `json:"i18n"`
	Custom       []customEntry       `json:"custom"`
	I18n2        []i18n2Entry        `json:"i18n2"`
}

const (
	// singleFileName is used in non-debug mode: all four maps under
	// one file.
	singleFileName = "_loader.json"

	debugMessageCacheFile = "_loader_messagecache.json"
	debugI18nFile         = "_loader_i18n.json"
	debugCustomFile       = "_loader_custom.json"
	debugI18n2File        = "_loader_i18n2.json"
)

func toFileSet(messageCache map[string][]string, i18n map[string][]*regexp.Regexp, custom map[Key]map[string]string, i18n2 map[Key]map[string]*regexp.Regexp) fileSet {
	i18nSources := make(map[string][]string, len(i18n))
	for name, regexes := range i18n {
		sources := make([]string, len(regexes))
		for i, re := range regexes {
			sources[i] = re.String()
		}
		i18nSources[name] = sources
	}

	customEntries := make([]customEntry, 0, len(custom))
	for key, value := range custom {
		customEntries = append(customEntries, customEntry{Key: keyJSON(key), Value: value})
	}

	i18n2Entries := make([]i18n2Entry, 0, len(i18n2))
	for key, value := range i18n2 {
		sources := make(map[string]string, len(value))
		for name, re := range value {
			sources[name] = re.String()
		}
		i18n2Entries = append(i18n2Entries, i18n2Entry{Key: keyJSON(key), Value: sources})
	}

	return fileSet{
		MessageCache: messageCache,
		I18n:         i18nSources,
		Custom:       customEntries,
		I18n2:        i18n2Entries,
	}
}

func fromFileSet(fs fileSet) (map[string][]string, map[string][]*regexp.Regexp, map[Key]map[string]string, map[Key]map[string]*regexp.Regexp, errors.E) {
	i18n := make(map[string][]*regexp.Regexp, len(fs.I18n))
	for name, sources := range fs.I18n {
		regexes := make([]*regexp.Regexp, len(sources))
		for i, source := range sources {
			re, err := regexp.Compile(source)
			if err != nil {
				return nil, nil, nil, nil, errors.WithDetails(errors.WithStack(err), "name", name, "source", source)
			}
			regexes[i] = re
		}
		i18n[name] = regexes
	}

	custom := make(map[Key]map[string]string, len(fs.Custom))
	for _, entry := range fs.Custom {
		custom[Key(entry.Key)] = entry.Value
	}

	i18n2 := make(map[Key]map[string]*regexp.Regexp, len(fs.I18n2))
	for _, entry := range fs.I18n2 {
		compiled := make(map[string]*regexp.Regexp, len(entry.Value))
		for name, source := range entry.Value {
			re, err := regexp.Compile(source)
			if err != nil {
				return nil, nil, nil, nil, errors.WithDetails(errors.WithStack(err), "name", name, "source", source)
			}
			compiled[name] = re
		}
		i18n2[Key(entry.Key)] = compiled
	}

	messageCache := fs.MessageCache
	if messageCache == nil {
		messageCache = map[string][]string{}
	}

	return messageCache, i18n, custom, i18n2, nil
}

// Save persists the cache to dir, as a single _loader.json file, or,
// when debug is true, as four separate files, per spec.md §6.
func (c *Cache) Save(dir string, debug bool) errors.E {
	messageCache, i18n, custom, i18n2 := c.Snapshot()
	fs := toFileSet(messageCache, i18n, custom, i18n2)

	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return errors.WithStack(err)
	}

	if !debug {
		return writeJSON(filepath.Join(dir, singleFileName), fs)
	}

	if err := writeJSON(filepath.Join(dir, debugMessageCacheFile), fs.MessageCache); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, debugI18nFile), fs.I18n); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, debugCustomFile), fs.Custom); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, debugI18n2File), fs.I18n2)
}

// Load reads a previously saved cache from dir. A missing or corrupt
// file is treated as an absent cache: Load returns (nil, nil) so the
// caller performs a full rebuild, per spec.md §4.3's failure policy.
func Load(dir string, debug bool) (*Cache, errors.E) {
	var fs fileSet

	if !debug {
		ok, err := readJSONIfExists(filepath.Join(dir, singleFileName), &fs)
		if err != nil || !ok {
			return nil, nil //nolint:nilerr
		}
	} else {
		okMC, err := readJSONIfExists(filepath.Join(dir, debugMessageCacheFile), &fs.MessageCache)
		if err != nil || !okMC {
			return nil, nil //nolint:nilerr
		}
		okI18n, err := readJSONIfExists(filepath.Join(dir, debugI18nFile), &fs.I18n)
		if err != nil || !okI18n {
			return nil, nil //nolint:nilerr
		}
		okCustom, err := readJSONIfExists(filepath.Join(dir, debugCustomFile), &fs.Custom)
		if err != nil || !okCustom {
			return nil, nil //nolint:nilerr
		}
		okI18n2, err := readJSONIfExists(filepath.Join(dir, debugI18n2File), &fs.I18n2)
		if err != nil || !okI18n2 {
			return nil, nil //nolint:nilerr
		}
	}

	messageCache, i18n, custom, i18n2, errE := fromFileSet(fs)
	if errE != nil {
		return nil, nil //nolint:nilerr
	}

	return &Cache{
		MessageCache: messageCache,
		I18n:         i18n,
		Custom:       custom,
		I18n2:        i18n2,
	}, nil
}

func writeJSON(path string, v interface{}) errors.E {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil { //nolint:mnd,gosec
		return errors.WithStack(err)
	}
	return nil
}

// readJSONIfExists reports false (no error) when path does not exist
// or does not parse, per the "corrupt or missing file is treated as
// empty" policy of spec.md §4.3.
func readJSONIfExists(path string, v interface{}) (bool, errors.E) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WithStack(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, nil //nolint:nilerr
	}
	return true, nil
}
