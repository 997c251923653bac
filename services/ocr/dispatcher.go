package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opentracing/opentracing-go"

	"github.com/pawpal/petmail/dto"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/enum"
	"github.com/pawpal/petmail/internal/logger"
	"github.com/pawpal/petmail/internal/tracing"
)

type ocrDispatcher struct {
	storage interfaces.StorageService
	oracle  interfaces.Oracle
	log     logger.Logger
}

func NewOCRDispatcher(storage interfaces.StorageService, oracle interfaces.Oracle, log logger.Logger) interfaces.OCRDispatcher {
	return &ocrDispatcher{storage: storage, oracle: oracle, log: log}
}

// TriggerOCR reads the stored document back and runs the extraction for its
// type. Failures are reported in the result, never returned or panicked.
func (d *ocrDispatcher) TriggerOCR(ctx context.Context, documentType enum.DocumentType, bucket, path string) dto.OCRResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ocrDispatcher.TriggerOCR")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("documentType", documentType, "path", path)

	route, ok := routes[documentType]
	if !ok {
		err := fmt.Errorf("no extractor for document type %q", documentType)
		tracing.TraceErr(span, err)
		return dto.OCRResult{Success: false, Error: err.Error()}
	}

	content, err := d.storage.Download(ctx, bucket, path)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.OCRResult{Success: false, Error: "failed to download document: " + err.Error()}
	}
	if len(content) == 0 {
		return dto.OCRResult{Success: false, Error: "stored document is empty"}
	}

	contentType := strings.Split(mimetype.Detect(content).String(), ";")[0]
	target := route.newTarget()
	err = d.oracle.GenerateJSON(ctx, route.prompt, &interfaces.InlineDocument{MimeType: contentType, Data: content}, route.schema, target)
	if err != nil {
		tracing.TraceErr(span, err)
		d.log.Warnf("extraction failed for %s (%s): %v", path, documentType, err)
		return dto.OCRResult{Success: false, Error: "extraction failed: " + err.Error()}
	}

	return dto.OCRResult{Success: true, Data: target}
}

// Supports reports whether documentType has an extractor.
func Supports(documentType enum.DocumentType) bool {
	_, ok := routes[documentType]
	return ok
}
