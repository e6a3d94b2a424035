package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/limaJavier/scheduler/pkg/model"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const (
	KB         = 1024
	MB float32 = 1024 * 1024
)

type ResultType int

const (
	solved ResultType = iota
	infeasible
	unverified
)

var resultTypes = map[ResultType]string{
	solved:     "solved",
	infeasible: "infeasible",
	unverified: "unverified",
}

type TestMetadata struct {
	Name      string
	Courses   int
	Instances int
	Rooms     int
	Faculty   int
	Groups    int
}

type BenchmarkResult struct {
	Solver        string
	Test          TestMetadata
	Duration      int64
	Memory        float32
	CpuPercentage int64
	Result        ResultType
}

func main() {
	var (
		executable string
		directory  string
		grid       string
		outFile    string
		solvers    []string
	)

	rootCmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measures the scheduler over every entities file of a directory with each SAT backend",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tests := getTests(directory)
			results := make([]BenchmarkResult, 0, len(tests)*len(solvers))
			for _, test := range tests {
				for _, solver := range solvers {
					fmt.Printf("Benchmarking test \"%v\" with solver \"%v\"\n", test.Name, solver)
					duration, maxMemory, cpuPercentage, result := measure(executable, solver, grid, test.Name)
					results = append(results, BenchmarkResult{
						Solver:        solver,
						Test:          test,
						Duration:      duration,
						Memory:        maxMemory,
						CpuPercentage: cpuPercentage,
						Result:        result,
					})
				}
			}
			toCsv(outFile, results)
		},
	}
	rootCmd.Flags().StringVar(&executable, "executable", "../../bin/scheduler", "Path to the scheduler binary")
	rootCmd.Flags().StringVar(&directory, "tests", "../../test/entities/", "Directory holding the entities files")
	rootCmd.Flags().StringVar(&grid, "grid", "", "Path to the slot grid file; if empty, the built-in grid is used")
	rootCmd.Flags().StringVar(&outFile, "out", "benchmark_results.csv", "Path to the CSV results file")
	rootCmd.Flags().StringSliceVar(&solvers, "solvers", []string{"gini", "kissat", "cadical", "minisat"}, "SAT backends to compare")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func getTests(directory string) []TestMetadata {
	files, err := os.ReadDir(directory)
	if err != nil {
		log.Fatalf("cannot read directory: %v", err)
	}

	tests := make([]TestMetadata, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		filename := filepath.Join(directory, file.Name())
		entities, err := model.LoadEntities(filename)
		if err != nil {
			log.Fatalf("cannot parse entities file: %v", err)
		}

		tests = append(tests, TestMetadata{
			Name:      filename,
			Courses:   len(entities.Courses()),
			Instances: len(entities.Keys()),
			Rooms:     len(entities.Rooms()),
			Faculty:   len(entities.Faculty()),
			Groups:    len(entities.Groups()),
		})
	}
	return tests
}

func measure(executable, solver, grid, testFile string) (duration int64, maxMemory float32, cpuPercentage int64, result ResultType) {
	args := []string{"-v", executable, "solve", "--solver", solver, "--entities", testFile, "--out", os.DevNull}
	if grid != "" {
		args = append(args, "--grid", grid)
	}
	cmd := exec.Command("/usr/bin/time", args...)

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stdErr bytes.Buffer
	cmd.Stderr = &stdErr

	_ = cmd.Run()
	switch cmd.ProcessState.ExitCode() {
	case 10:
		result = solved
	case 20:
		result = infeasible
	case 15:
		result = unverified
	default:
		log.Fatalf("an error occurred during the execution of \"scheduler\" at test \"%v\" using solver \"%v\": %v\n", testFile, solver, stdErr.String())
	}

	splits := strings.Split(stdErr.String(), "\n")
	getLine := func(substr string) string {
		line, ok := lo.Find(splits, func(line string) bool {
			return strings.Contains(strings.ToLower(line), substr)
		})
		if !ok {
			log.Fatalf("Substring \"%v\" could not be found", substr)
		}
		return line
	}

	duration = parseDurationLine(getLine("wall clock"))
	maxMemory = parseMemoryLine(getLine("maximum resident set size"))
	cpuPercentage = parseCpuPercentageLine(getLine("percent of cpu"))

	return duration, maxMemory, cpuPercentage, result
}

func toCsv(path string, results []BenchmarkResult) {
	file, err := os.Create(path)
	if err != nil {
		log.Panicf("cannot create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Solver", "Test", "Courses", "Instances", "Rooms", "Faculty", "Groups", "Duration(ms)", "Memory(MB)", "CPU(%)", "Result"}
	if err := writer.Write(header); err != nil {
		log.Panicf("cannot write CSV header: %v", err)
	}

	for _, result := range results {
		record := []string{
			result.Solver,
			result.Test.Name,
			strconv.Itoa(result.Test.Courses),
			strconv.Itoa(result.Test.Instances),
			strconv.Itoa(result.Test.Rooms),
			strconv.Itoa(result.Test.Faculty),
			strconv.Itoa(result.Test.Groups),
			strconv.FormatInt(result.Duration, 10),
			fmt.Sprintf("%.1f", result.Memory),
			strconv.FormatInt(result.CpuPercentage, 10),
			resultTypes[result.Result],
		}
		if err := writer.Write(record); err != nil {
			log.Panicf("cannot write CSV record: %v", err)
		}
	}
}

func parseDurationLine(line string) int64 {
	_, durationStr, _ := strings.Cut(line, "(h:mm:ss or m:ss):")
	return parseDuration(strings.TrimSpace(durationStr))
}

// parseDuration converts GNU time's h:mm:ss.hh or m:ss.hh into milliseconds
func parseDuration(durationStr string) int64 {
	parts := strings.Split(durationStr, ":")
	seconds, hundredths, _ := strings.Cut(parts[len(parts)-1], ".")

	if len(parts) > 3 {
		log.Fatalf("unexpected duration format: %v", durationStr)
	}
	total, multiplier := lo.Must(strconv.Atoi(seconds)), 60
	for i := len(parts) - 2; i >= 0; i-- {
		total += lo.Must(strconv.Atoi(parts[i])) * multiplier
		multiplier *= 60
	}
	return int64(total)*1000 + int64(lo.Must(strconv.Atoi(hundredths))*10)
}

func parseMemoryLine(line string) float32 {
	_, memoryStr, _ := strings.Cut(line, ":")
	return float32(lo.Must(strconv.ParseFloat(strings.TrimSpace(memoryStr), 32))) * KB / MB
}

func parseCpuPercentageLine(line string) int64 {
	_, percentageStr, _ := strings.Cut(line, ":")
	percentageStr = strings.TrimSuffix(strings.TrimSpace(percentageStr), "%")
	return int64(lo.Must(strconv.Atoi(percentageStr)))
}
