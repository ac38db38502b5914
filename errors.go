package wr

import "errors"

var (
	// ErrUnknownConfigFormat is returned by LoadConfig for files that are
	// neither TOML nor YAML.
	ErrUnknownConfigFormat = errors.New("wr: unknown config file format")

	// ErrEmptyScene is returned by Build when the scene has no pictures.
	ErrEmptyScene = errors.New("wr: scene has no pictures")

	// ErrInvalidPictureIndex is returned when a scene references a
	// picture that does not exist.
	ErrInvalidPictureIndex = errors.New("wr: invalid picture index")

	// ErrInvalidSpatialNode is returned when a scene references a spatial
	// node that does not exist.
	ErrInvalidSpatialNode = errors.New("wr: invalid spatial node")
)
