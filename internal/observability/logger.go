package observability

import "github.com/lesionscan/lesionscan/internal/logger"

var log = logger.Global().Module("observability")
