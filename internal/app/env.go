package app

import (
    "bufio"
    "errors"
    "os"
    "strings"
)

// DefaultEnvFile is loaded at startup when present; it usually carries the
// API key.
const DefaultEnvFile = ".env"

// LoadEnvFiles loads dotenv files of KEY=VALUE pairs into the process
// environment. Variables already set in the environment are left alone, and
// among the files the first one to define a key wins. Missing files are
// skipped.
func LoadEnvFiles(paths ...string) error {
    for _, p := range paths {
        if strings.TrimSpace(p) == "" {
            continue
        }
        if err := loadEnvFile(p); err != nil {
            if errors.Is(err, os.ErrNotExist) {
                continue
            }
            return err
        }
    }
    return nil
}

func loadEnvFile(path string) error {
    f, err := os.Open(path)
    if err != nil {
        return err
    }
    defer f.Close()

    scanner := bufio.NewScanner(f)
    for scanner.Scan() {
        line := strings.TrimSpace(scanner.Text())
        if line == "" || strings.HasPrefix(line, "#") {
            continue
        }
        line = strings.TrimPrefix(line, "export ")
        eq := strings.IndexByte(line, '=')
        if eq <= 0 {
            continue
        }
        key := strings.TrimSpace(line[:eq])
        val := strings.TrimSpace(line[eq+1:])
        if len(val) >= 2 {
            if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
                val = val[1 : len(val)-1]
            }
        }
        if _, set := os.LookupEnv(key); set {
            continue
        }
        _ = os.Setenv(key, val)
    }
    return scanner.Err()
}
