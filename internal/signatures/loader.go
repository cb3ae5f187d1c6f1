// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

// Package signatures loads RMM signature definitions from a directory of
// YAML files. One file per tool; the filename stem is the signature name.
package signatures

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
)

// signatureFile is the on-disk YAML shape of one RMM definition.
type signatureFile struct {
	Meta struct {
		ID          string `yaml:"ID"`
		Description string `yaml:"Description"`
	} `yaml:"Meta"`
	Executables models.Executables `yaml:"Executables"`
	NetConn     struct {
		Domains []string `yaml:"Domains"`
		Ports   []int    `yaml:"Ports"`
	} `yaml:"NetConn"`
}

// Loader reads signature definitions from a directory.
type Loader struct {
	dir string
	log *logger.Logger
}

// NewLoader builds a loader for the given directory.
func NewLoader(dir string, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{dir: dir, log: log}
}

// Load reads every .yaml/.yml file in the directory. Unparseable or invalid
// files are skipped with a warning; an empty directory is an error because a
// hunt with no signatures is always a misconfiguration. Results come back
// sorted by name so runs are reproducible.
func (l *Loader) Load() ([]models.Signature, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "signatures directory %s", l.dir)
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.CodeValidation, "signatures path %s is not a directory", l.dir)
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeValidation, "read signatures directory %s", l.dir)
	}

	var sigs []models.Signature
	var yamlFiles, skipped int
	loadedFrom := make(map[string]string)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		yamlFiles++

		sig, err := l.loadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			skipped++
			l.log.Warn("skipping signature file", "file", e.Name(), "error", err)
			continue
		}

		// Foo.yaml and Foo.yml would collide in every name-keyed map
		// downstream; the first loaded file wins.
		key := strings.ToLower(sig.Name)
		if prev, dup := loadedFrom[key]; dup {
			skipped++
			l.log.Warn("skipping signature file: duplicate signature name",
				"file", e.Name(), "first", prev)
			continue
		}
		loadedFrom[key] = e.Name()
		sigs = append(sigs, sig)
	}

	if yamlFiles == 0 {
		return nil, errors.Newf(errors.CodeValidation, "no YAML files found in %s", l.dir)
	}
	if len(sigs) == 0 {
		return nil, errors.Newf(errors.CodeValidation,
			"all %d signature files in %s were invalid", yamlFiles, l.dir)
	}

	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Name < sigs[j].Name })

	l.log.Info("loaded signatures",
		"dir", l.dir, "loaded", len(sigs), "skipped", skipped)
	return sigs, nil
}

// LoadOne returns the signature whose name or ID matches.
func (l *Loader) LoadOne(nameOrID string) (models.Signature, error) {
	sigs, err := l.Load()
	if err != nil {
		return models.Signature{}, err
	}
	for _, s := range sigs {
		if strings.EqualFold(s.Name, nameOrID) || s.ID == nameOrID {
			return s, nil
		}
	}
	return models.Signature{}, errors.NotFound("signature " + nameOrID)
}

func (l *Loader) loadFile(path string) (models.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Signature{}, err
	}

	var sf signatureFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return models.Signature{}, errors.Wrap(err, errors.CodeInvalidSignature, "parse YAML")
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return models.NewSignature(name, sf.Meta.ID, sf.NetConn.Domains, sf.Executables, sf.NetConn.Ports)
}
