package templates

// ServerAPI is the ASGI entry point loaded by the start command.
const ServerAPI = `"""{{.Name}} REST API entry point."""

import logging

from fastapi import FastAPI
from fastapi.responses import RedirectResponse


logging.basicConfig(level=logging.INFO, format="%(asctime)s - %(levelname)s - %(message)s")
logger = logging.getLogger(__name__)

app = FastAPI(
    title="{{.Name}}",
    description="REST API served by {{.Module}}:{{.Attribute}}.",
    version="1.0.0",
)


@app.get("/", summary="Redirect to the OpenAPI documentation", include_in_schema=False)
async def home():
    """Redirect to the OpenAPI documentation."""
    return RedirectResponse(url="/docs", status_code=307)
`

// PackageInit marks a directory as a python package.
const PackageInit = `"""{{.Package}} package."""
`

// Requirements lists the packages installed by --install-deps. The base
// image already ships them.
const Requirements = `fastapi
uvicorn[standard]
python-dotenv
`
