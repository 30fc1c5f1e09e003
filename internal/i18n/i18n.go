package i18n

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/ogcommunity/ogmodbot/internal/infra"
	"github.com/ogcommunity/ogmodbot/resources"
)

// Get is called from handler goroutines and timers alike, so the lazy
// load is serialized behind a mutex.
var state = struct {
	sync.Mutex
	translations  map[string]map[string]string
	loaded        map[string]bool
	resourcesPath string
}{
	translations:  make(map[string]map[string]string),
	loaded:        make(map[string]bool),
	resourcesPath: infra.GetResourcesPath("i18n"),
}

func load(lang string) {
	data, err := resources.FS.ReadFile(state.resourcesPath + "/" + fmt.Sprintf("%s.yml", lang))
	if err != nil {
		log.WithError(err).Errorln("cant load i18n")
		return
	}
	translations := make(map[string]string)
	if err := yaml.Unmarshal(data, &translations); err != nil {
		log.WithError(err).Errorln("cant unmarshal i18n")
		return
	}
	state.translations[lang] = translations
	state.loaded[lang] = true
}

// Get returns the translation for key in lang, falling back to the
// English key text itself.
func Get(key, lang string) string {
	if "en" == lang {
		return key
	}

	state.Lock()
	if !state.loaded[lang] {
		load(lang)
	}
	res, ok := state.translations[lang][key]
	state.Unlock()

	if ok {
		return res
	}
	log.Tracef(`no translation for key "%s"`, key)
	return key
}

func GetLanguagesList() []string {
	return []string{"en", "ru"}
}
