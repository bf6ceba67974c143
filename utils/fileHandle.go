package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"presale/kyc"
	"presale/models"
)

// ReadUploadedFile loads a multipart upload into a KYC document.
// The declared size is checked before reading so oversize files are never buffered.
func ReadUploadedFile(file *multipart.FileHeader, kind models.KYCDocumentKind) (kyc.Document, error) {
	doc := kyc.Document{Kind: kind, FileName: filepath.Base(file.Filename), Size: file.Size}
	if file.Size > kyc.MaxDocumentSize {
		return doc, nil
	}

	// Open the uploaded file
	src, err := file.Open()
	if err != nil {
		return doc, err
	}
	defer src.Close()

	content, err := io.ReadAll(io.LimitReader(src, kyc.MaxDocumentSize+1))
	if err != nil {
		return doc, err
	}
	doc.Content = content
	doc.Size = int64(len(content))
	return doc, nil
}

// DiskDocumentStore keeps accepted KYC documents under one directory per proposal.
type DiskDocumentStore struct {
	Root string
}

func (s DiskDocumentStore) Put(_ context.Context, proposalID string, doc kyc.Document) (string, error) {
	destDir := filepath.Join(s.Root, filepath.Base(proposalID))

	// Create destination directory if it doesn't exist
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}

	// Create a unique filename
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	newFilename := fmt.Sprintf("%s-%s%s", strings.ToLower(string(doc.Kind)), time.Now().Format("20060102150405.000000000"), ext)
	filePath := filepath.Join(destDir, newFilename)

	if err := os.WriteFile(filePath, doc.Content, 0o640); err != nil {
		return "", err
	}
	return filePath, nil
}

func GetFileURL(filePath string) string {
	if filePath == "" {
		return ""
	}
	return "/uploads/" + filepath.ToSlash(filePath)
}
