package domain

// CloudMode selects the remote object transport.
type CloudMode string

const (
	CloudModeNone CloudMode = ""
	// CloudModePAR uses a pre-authenticated URL prefix and plain HTTP.
	CloudModePAR CloudMode = "par"
	// CloudModeS3 uses S3 credentials against AWS or a compatible endpoint.
	CloudModeS3 CloudMode = "s3"
	// CloudModeGCS uses a Google Cloud Storage bucket.
	CloudModeGCS CloudMode = "gcs"
)

// CloudConfig holds the transport settings. It is shared between devices
// through the pairing payload, so the json names match the other clients.
type CloudConfig struct {
	ParURL          string `json:"parUrl,omitempty" yaml:"par_url"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint"`
	Bucket          string `json:"bucket,omitempty" yaml:"bucket"`
	Region          string `json:"region,omitempty" yaml:"region"`
	AccessKeyID     string `json:"accessKeyId,omitempty" yaml:"access_key_id"`
	SecretAccessKey string `json:"secretAccessKey,omitempty" yaml:"secret_access_key"`
	Provider        string `json:"provider,omitempty" yaml:"provider"`
	CredentialsFile string `json:"credentialsFile,omitempty" yaml:"credentials_file"`
}

// Mode infers the transport from the populated fields. A PAR URL wins over
// credentials, matching how the other clients pick a transport.
func (c CloudConfig) Mode() CloudMode {
	switch {
	case c.ParURL != "":
		return CloudModePAR
	case c.Provider == string(CloudModeGCS) && c.Bucket != "":
		return CloudModeGCS
	case c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Region != "":
		return CloudModeS3
	default:
		return CloudModeNone
	}
}

// PairingPayload is what one device hands to another (usually as a QR code)
// so both replicate the same remote object.
type PairingPayload struct {
	Cloud CloudConfig `json:"aws"`
	GUID  string      `json:"guid"`
	Key   string      `json:"key"`
}
