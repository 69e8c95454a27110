package service

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/onhighmng/melhor-saude-final-57-sub010/internal/service")
