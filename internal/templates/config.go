package templates

import "os"

const configTemplate = `
home_dir: ~/.conductor
environment: dev
host: localhost
port: 9900
public_url: http://localhost:9900
filesystem_type: local

db:
  driver: sqlite
  dsn: file:~/.conductor/conductor.db

# s3:
#   endpoint_url: "https://nyc3.digitaloceanspaces.com"
#   region_name: "nyc3"
#   bucket_name: "conductor-media"
#   folder: "public"
#   public_url: "https://media.example.com"

mq:
  type: inmemory

runner:
  max_concurrent_runs: 4
  pending_timeout_minutes: 120
  poll_interval_seconds: 5
  poll_max_attempts: 60
`

const envTemplate = `# Provider credentials. The CONDUCTOR_ prefixed forms work too.
OPENAI_API_KEY=
BFL_API_KEY=
LUMA_API_KEY=
RUNWAY_API_KEY=
REPLICATE_API_KEY=
GOOGLE_PROJECT_ID=
GOOGLE_LOCATION=us-central1
GOOGLE_APPLICATION_CREDENTIALS=
`

func GetConfigTemplate() string {
	return configTemplate
}

func WriteConfig(path string) error {
	return writeFile(path, GetConfigTemplate())
}

func WriteEnv(path string) error {
	return writeFile(path, envTemplate)
}

func writeFile(path string, content string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(content)
	if err != nil {
		return err
	}

	return nil
}
