// Command signfile prints the signature the upload service attaches to a
// file, for seeding test data and debugging rejected avatars.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"users-service/internal/models"
	"users-service/internal/signature"
)

func main() {
	_ = godotenv.Load()

	secret := flag.String("secret", os.Getenv("FILES_SIGNATURE_SECRET"), "signing secret (default $FILES_SIGNATURE_SECRET)")
	filename := flag.String("filename", "", "file name as stored by the upload service")
	filetype := flag.String("filetype", string(models.FiletypeAvatar), "system filetype: avatar or file_in_chat")
	url := flag.String("url", "", "optional URL; with it the full file meta is printed as JSON")
	flag.Parse()

	if *secret == "" || *filename == "" {
		flag.Usage()
		os.Exit(2)
	}

	meta := models.FileMeta{
		URL:      *url,
		Filename: *filename,
		Filetype: models.Filetype(*filetype),
	}
	meta.Signature = signature.NewVerifier(*secret).Sign(meta.Filename, meta.Filetype)

	if *url == "" {
		fmt.Println(meta.Signature)
		return
	}
	out, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
