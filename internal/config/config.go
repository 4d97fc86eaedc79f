package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Load 读取配置文件（含 include 链），叠加环境变量中的密钥，补默认值并校验。
// include 的文件先于引用者合并，后者覆盖前者。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	chain := newIncludeChain()
	if err := chain.walk(root); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, doc := range chain.docs {
		if err := v.MergeConfigMap(doc.settings); err != nil {
			return nil, fmt.Errorf("merging config %s: %w", doc.path, err)
		}
	}
	applyEnvOverrides(v)

	var cfg Config
	decode := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}
	if err := v.Unmarshal(&cfg, decode); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	explicit := make(keySet)
	markExplicit(explicit, "", v.AllSettings())
	cfg.applyDefaults(explicit)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type configDoc struct {
	path     string
	settings map[string]any
}

// includeChain 按依赖顺序收集配置文件，每个文件只读一次。
type includeChain struct {
	docs     []configDoc
	done     map[string]bool
	visiting map[string]bool
}

func newIncludeChain() *includeChain {
	return &includeChain{done: map[string]bool{}, visiting: map[string]bool{}}
}

func (c *includeChain) walk(path string) error {
	path = filepath.Clean(path)
	switch {
	case c.visiting[path]:
		return fmt.Errorf("include cycle detected: %s", path)
	case c.done[path]:
		return nil
	}
	c.visiting[path] = true
	defer delete(c.visiting, path)

	r := viper.New()
	r.SetConfigFile(path)
	if err := r.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	includes, err := includeList(r.Get("include"))
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := c.walk(inc); err != nil {
			return err
		}
	}

	settings := r.AllSettings()
	delete(settings, "include")
	c.docs = append(c.docs, configDoc{path: path, settings: settings})
	c.done[path] = true
	return nil
}

// includeList 接受字符串数组，空项忽略。
func includeList(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		if strs, isStrs := raw.([]string); isStrs {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		} else {
			return nil, fmt.Errorf("include must be a string array")
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isStr := item.(string)
		if !isStr {
			return nil, fmt.Errorf("include only supports strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// markExplicit 记录文件中出现过的叶子路径，默认值不覆盖这些字段。
// 列表整体视为一个叶子。
func markExplicit(dest keySet, prefix string, node any) {
	children, err := cast.ToStringMapE(node)
	if err != nil || isList(node) {
		dest.mark(prefix)
		return
	}
	for k, child := range children {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if prefix != "" {
			k = prefix + "." + k
		}
		markExplicit(dest, k, child)
	}
}

func isList(node any) bool {
	switch node.(type) {
	case []any, []string:
		return true
	}
	return false
}
