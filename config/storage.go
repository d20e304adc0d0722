package config

// StorageConfig contains hosted object storage configuration, used for
// profile picture uploads. Empty BaseURL disables uploads.
type StorageConfig struct {
	// BaseURL is the root of the storage API.
	BaseURL string `env:"STORAGE_BASE_URL" envDefault:""`

	// Bucket is the public bucket holding user content.
	Bucket string `env:"STORAGE_BUCKET" envDefault:"public"`

	// APIKey authorizes writes.
	APIKey string `env:"STORAGE_API_KEY" envDefault:""`
}
