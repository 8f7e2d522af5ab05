package env

import (
	"fmt"
	"os"
)

var (
	Verbose = GetEnv("TLS_PERF_VERBOSE", "")
)

func GetEnv(name, defval string) string {
	if r := os.Getenv(name); r != "" {
		return r
	}
	return defval
}

func Fatal(x ...interface{}) {
	panic(fmt.Sprintln(x...))
}

func Print(x ...interface{}) {
	if Verbose == "true" {
		fmt.Println(x...)
	}
}
