package nest

import (
	"errors"

	"github.com/meigma/nest/archive"
	"github.com/meigma/nest/cache"
	"github.com/meigma/nest/index"
	"github.com/meigma/nest/locator"
)

// Errors re-exported from subpackages.
var (
	// ErrMalformedLocator is returned for locators that cannot be parsed or built.
	ErrMalformedLocator = locator.ErrMalformedLocator

	// ErrEntryNotFound is returned when an entry is missing at some level.
	ErrEntryNotFound = archive.ErrEntryNotFound

	// ErrContainerNotFound is returned when a base archive cannot be opened.
	ErrContainerNotFound = archive.ErrContainerNotFound

	// ErrPermissionDenied is returned when the access check rejects a location.
	ErrPermissionDenied = cache.ErrPermissionDenied

	// ErrIndexFormat is returned for index files with an unsupported version.
	ErrIndexFormat = index.ErrIndexFormat
)

// Connection errors.
var (
	// ErrNoEntry is returned when reading a locator that names no entry.
	ErrNoEntry = errors.New("nest: locator names no entry")

	// ErrStreamTaken is returned when a connection's stream is requested twice.
	ErrStreamTaken = errors.New("nest: input stream already taken")

	// ErrConnected is returned when changing the locator of a connected connection.
	ErrConnected = errors.New("nest: already connected")
)
