package tool

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func GenerateRandomUUID() string {
	return uuid.New().String()
}

// NewFileID returns "file-<unix millis>-<9 random chars>", unique within the process.
func NewFileID() string {
	suffix := strings.ReplaceAll(GenerateRandomUUID(), "-", "")[:9]
	return fmt.Sprintf("file-%d-%s", time.Now().UnixMilli(), suffix)
}
