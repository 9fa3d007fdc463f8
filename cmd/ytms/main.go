// Command ytms stores arbitrary files inside video containers and
// recovers them, using the packet codec pipelines in mscodec.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fiveangle/yt-media-storage/mscodec"
	"github.com/fiveangle/yt-media-storage/mscrypto"
	"github.com/fiveangle/yt-media-storage/mspacket"
	"github.com/fiveangle/yt-media-storage/mssecret"
	"github.com/fiveangle/yt-media-storage/msvideo"
)

func main() {
	root := &cobra.Command{
		Use:           "ytms",
		Short:         "Store files inside video containers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEncodeCmd(), newDecodeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func newEncodeCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		encrypt    bool
		password   string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a file into a video container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if encrypt && password == "" {
				var err error
				password, err = promptPassword("Password: ")
				if err != nil {
					return fmt.Errorf("--encrypt requires --password: %w", err)
				}
			}
			return runEncode(newLogger(), inputPath, outputPath, encrypt, password)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "file to encode")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "video container to write")
	cmd.Flags().BoolVarP(&encrypt, "encrypt", "e", false, "encrypt content")
	cmd.Flags().StringVarP(&password, "password", "p", "", "encryption password")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runEncode(log *slog.Logger, inputPath, outputPath string, encrypt bool, password string) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	log.Info("encoding", "input", inputPath, "size", formatSize(info.Size()))

	id := uuid.New()
	var fileID mspacket.FileID
	copy(fileID[:], id[:])

	var key *mssecret.Buffer
	if encrypt {
		pw, err := mssecret.NewFromBytes([]byte(password))
		if err != nil {
			return fmt.Errorf("failed to protect password: %w", err)
		}
		key, err = mscrypto.DeriveKey(pw, fileID)
		pw.Close()
		if err != nil {
			return err
		}
		defer key.Close()
	}

	writer, err := msvideo.NewFrameFileWriter(outputPath)
	if err != nil {
		return err
	}

	enc := mscodec.NewEncoder(fileID, key)
	manifest, err := enc.EncodeFile(in, info.Size(), writer)
	if err != nil {
		writer.Finalize()
		return err
	}
	if err := writer.Finalize(); err != nil {
		return err
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("failed to stat output: %w", err)
	}

	log.Info("encode complete",
		"chunks", len(manifest),
		"file_id", uuid.UUID(fileID).String(),
		"input_size", formatSize(info.Size()),
		"output_size", formatSize(outInfo.Size()),
		"output", outputPath,
	)
	return nil
}

func newDecodeCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		password   string
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Recover a file from a video container",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(newLogger(), inputPath, outputPath, password)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "video container to read")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "file to write")
	cmd.Flags().StringVarP(&password, "password", "p", "", "decryption password")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runDecode(log *slog.Logger, inputPath, outputPath, password string) error {
	reader, err := msvideo.NewFrameFileReader(inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	dec := mscodec.NewDecoder(log)

	var frames, extracted int
	for {
		blobs, err := reader.DecodeNextFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read video: %w", err)
		}
		if len(blobs) == 0 {
			continue
		}
		frames++
		for _, blob := range blobs {
			extracted++
			dec.ProcessPacket(blob)
		}
	}

	if extracted == 0 {
		return fmt.Errorf("no packets could be extracted from the video")
	}

	expected := dec.ExpectedChunks()
	log.Info("scan complete",
		"frames", frames,
		"packets", extracted,
		"chunks_recovered", dec.RecoveredChunks(),
		"chunks_expected", expected,
	)

	if dec.IsEncrypted() {
		if password == "" {
			password, err = promptPassword("Password: ")
			if err != nil {
				return fmt.Errorf("content is encrypted, password required (use --password)")
			}
		}
		fileID, ok := dec.FileID()
		if !ok {
			return fmt.Errorf("no file id recovered from the video")
		}

		pw, err := mssecret.NewFromBytes([]byte(password))
		if err != nil {
			return fmt.Errorf("failed to protect password: %w", err)
		}
		key, err := mscrypto.DeriveKey(pw, fileID)
		pw.Close()
		if err != nil {
			return err
		}
		defer key.Close()
		dec.SetKey(key)
		defer dec.ClearKey()
	}

	assembled, err := dec.AssembleFile(expected)
	if err != nil {
		return fmt.Errorf("failed to assemble file: %w", err)
	}

	if err := os.WriteFile(outputPath, assembled, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	log.Info("decode complete", "output", outputPath, "size", formatSize(int64(len(assembled))))
	return nil
}

// promptPassword reads a password from the terminal without echo.
// Fails when stdin is not a terminal, so scripted runs must pass
// --password explicitly.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(raw), nil
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMG"[exp])
}
