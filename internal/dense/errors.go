package dense

import "errors"

var (
	// ErrEmptyCorpus is returned by Build when the document stream yields no
	// documents; no index is constructed.
	ErrEmptyCorpus = errors.New("no documents provided to build dense index")
	// ErrNotBuilt is returned by Save when Build has not completed successfully.
	ErrNotBuilt = errors.New("dense index not built")
	// ErrMissingArtifact is returned by Load when an expected artifact file is
	// absent from the index directory.
	ErrMissingArtifact = errors.New("dense index artifact missing")
)
