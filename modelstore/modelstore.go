// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package modelstore downloads and caches pretrained MobileNetV2 weights.
//
// Weights are listed in a YAML manifest:
//
//	models:
//	  - name: mobilenetv2_w1
//	    error: "0.2875"
//	    sha256: 9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
//	    release: v0.1.0
//
// and cached as <root>/<name>-<error>-<sha256[:8]>.safetensors, where root
// defaults to $BORN_MODELS_ROOT or ~/.born/models.
package modelstore

import (
	"github.com/born-ml/mobilenet/internal/modelstore"
)

// Store fetches weight files listed in a manifest.
type Store = modelstore.Store

// Option configures a Store.
type Option = modelstore.Option

// Manifest lists the weight files a store can fetch.
type Manifest = modelstore.Manifest

// Entry describes one pretrained weight file.
type Entry = modelstore.Entry

// Errors.
var (
	ErrUnknownModel    = modelstore.ErrUnknownModel
	ErrInvalidManifest = modelstore.ErrInvalidManifest
	ErrDownload        = modelstore.ErrDownload
	ErrArchive         = modelstore.ErrArchive
)

// Defaults.
const (
	DefaultBaseURL     = modelstore.DefaultBaseURL
	DefaultConcurrency = modelstore.DefaultConcurrency
	RootEnv            = modelstore.RootEnv
)

// New creates a store over manifest.
func New(manifest *Manifest, opts ...Option) *Store {
	return modelstore.New(manifest, opts...)
}

// DefaultRoot returns $BORN_MODELS_ROOT, or ~/.born/models.
func DefaultRoot() string { return modelstore.DefaultRoot() }

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) { return modelstore.ParseManifest(data) }

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) { return modelstore.LoadManifest(path) }

// Store options.
var (
	WithRoot       = modelstore.WithRoot
	WithBaseURL    = modelstore.WithBaseURL
	WithHTTPClient = modelstore.WithHTTPClient
	WithLogger     = modelstore.WithLogger
)
