package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"quorumtrader/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileConfig 映射模板文件。
type FileConfig struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// Registry 持有可热更新的提示词模板。
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	name     string
	tpl      *template.Template
	version  int64
	loadedAt time.Time
	onChange []func(version int64)
}

// NewRegistry 读取模板文件并监听更新。重载失败时保留上一版模板。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("prompt registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read prompt template failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("prompt template reload failed: %v", err)
			return
		}
		r.notify()
	})
	v.WatchConfig()
	return r, nil
}

// Current 返回当前模板及版本号。
func (r *Registry) Current() (*template.Template, int64) {
	if r == nil {
		return nil, 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tpl, r.version
}

func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// OnChange registers fn to run after each successful reload.
func (r *Registry) OnChange(fn func(version int64)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readTemplateFile(r.path)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(r.path), filepath.Ext(r.path))
	}
	tpl, err := compile(name, cfg.Template)
	if err != nil {
		return fmt.Errorf("compile prompt template %s: %w", name, err)
	}
	r.mu.Lock()
	r.name = name
	r.tpl = tpl
	r.version++
	r.loadedAt = time.Now()
	version := r.version
	r.mu.Unlock()
	logger.Infof("Prompt template %s v%d loaded from %s", name, version, filepath.Base(r.path))
	return nil
}

func (r *Registry) notify() {
	r.mu.RLock()
	version := r.version
	listeners := append([]func(int64){}, r.onChange...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("prompt listener panic: %v", rec)
				}
			}()
			fn(version)
		}()
	}
}

func readTemplateFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read prompt template failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse prompt template failed: %w", err)
	}
	if strings.TrimSpace(cfg.Template) == "" {
		return FileConfig{}, fmt.Errorf("prompt template %s is empty", path)
	}
	return cfg, nil
}
