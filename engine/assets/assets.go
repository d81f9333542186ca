package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/vkcube/engine/assets/loaders"
	"github.com/spaghettifunk/vkcube/engine/core"
)

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

// AssetManager loads assets from disk and, when watching is enabled, records
// which loaded files changed since the last Poll.
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader
	mutex   sync.RWMutex

	fsnotify *fsnotify.Watcher
	watched  map[string]bool
	changed  map[string]bool
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

// NewAssetManager creates a manager. With watch set, a file watcher goroutine
// tracks modifications of every asset loaded afterwards.
func NewAssetManager(watch bool) (*AssetManager, error) {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		watched: make(map[string]bool),
		changed: make(map[string]bool),
		done:    make(chan struct{}),
	}

	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeImage, &loaders.ImageLoader{})

	if watch {
		fsWatch, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		am.fsnotify = fsWatch
		am.wg.Add(1)
		go am.start()
	}
	return am, nil
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads path with the loader registered for resourceType.
func (am *AssetManager) LoadAsset(path string, resourceType loaders.ResourceType) (*loaders.Resource, error) {
	loader, exists := am.loaders[resourceType]
	if !exists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", resourceType)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve asset path %s: %w", path, err)
	}

	res, err := loader.Load(abs)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[abs] = AssetInfo{
		Path:       abs,
		Type:       resourceType,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()

	if am.fsnotify != nil {
		if err := am.watch(abs); err != nil {
			core.LogWarn("cannot watch %s: %s", abs, err)
		}
	}

	core.LogDebug("loaded %s asset %s (%d bytes)", resourceType, res.Name, res.DataSize)
	return res, nil
}

func (am *AssetManager) UnloadAsset(res *loaders.Resource) error {
	loader, exists := am.loaders[res.Type]
	if !exists {
		return fmt.Errorf("no loader registered for asset type: %s", res.Type)
	}
	return loader.Unload(res)
}

// Poll returns the loaded assets modified since the previous call. It never blocks.
func (am *AssetManager) Poll() []string {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	if len(am.changed) == 0 {
		return nil
	}
	paths := make([]string, 0, len(am.changed))
	for p := range am.changed {
		paths = append(paths, p)
	}
	am.changed = make(map[string]bool)
	return paths
}

func (am *AssetManager) Shutdown() error {
	if am.fsnotify == nil || am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	am.wg.Wait()
	return nil
}

// watch adds the directory of path, editors often replace files instead of writing them.
func (am *AssetManager) watch(path string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	dir := filepath.Dir(path)

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.watched[dir] {
		return nil
	}
	if err := am.fsnotify.Add(dir); err != nil {
		return err
	}
	am.watched[dir] = true
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				am.handleFileEvent(e.Name)
			}
		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)
		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if _, err := os.Stat(abs); err != nil {
		return
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	if _, known := am.assets[abs]; known {
		am.changed[abs] = true
	}
}
