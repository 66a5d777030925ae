package entity

import (
	"errors"

	"github.com/planetilt/host/internal/asset"
)

var (
	// ErrUnsupportedAssetFormat is returned by SetModel for unknown extensions.
	ErrUnsupportedAssetFormat = asset.ErrUnsupportedFormat

	// ErrMissingMesh is returned when a transform is read, or a body attached,
	// before any geometry has been installed.
	ErrMissingMesh = errors.New("entity has no mesh")

	// ErrNotRegistered is returned when operating on a removed entity.
	ErrNotRegistered = errors.New("entity not registered")

	// ErrNoAssetLibrary is returned by SetModel on a simulation built without
	// an asset library.
	ErrNoAssetLibrary = errors.New("simulation has no asset library")

	// ErrEmptyContainer is returned by SetGeometry when a container source has
	// no child to take the geometry from.
	ErrEmptyContainer = errors.New("geometry container has no children")
)
