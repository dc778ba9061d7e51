package templates

// IgnoreFile lists files left out of the copied source tree.
const IgnoreFile = `# Files excluded from the image source copy.
__pycache__/
*.pyc
*.pyo
.pytest_cache/
.mypy_cache/
*.egg-info/
.env
`

// EnvExample documents the settings read by the application. Use it with
// "memos-bootstrap build -E .env".
const EnvExample = `# Identity
MOS_USER_ID=default_user
MOS_SESSION_ID=default_session
MOS_TOP_K=5

# Chat model
MOS_CHAT_MODEL_PROVIDER=openai
MOS_CHAT_MODEL=gpt-3.5-turbo
MOS_CHAT_TEMPERATURE=0.7

# Memory reader
MOS_MEM_READER_LLM_PROVIDER=openai
MOS_MEM_READER_MODEL=gpt-3.5-turbo
MOS_MEM_READER_TEMPERATURE=0.7

# Embedder
MOS_EMBEDDER_PROVIDER=openai
MOS_EMBEDDER_MODEL=text-embedding-ada-002
MOS_CHUNK_SIZE=512
MOS_CHUNK_OVERLAP=128

OPENAI_API_KEY=
OPENAI_API_BASE=https://api.openai.com/v1
`

// ImageMetadata adds labels to the built image.
const ImageMetadata = `{
  "labels": [
    {"io.k8s.display-name": "{{.Name}}"},
    {"io.openshift.tags": "memos,python,asgi"}
  ]
}
`
