package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
)

var (
	csvFile string
)

func main() {
	csvFilePtr := flag.String("csvFile", csvFile, "file containing the norm history of a coupled run")
	flag.Parse()
	csvFile = *csvFilePtr
	if len(csvFile) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	fmt.Printf("Input file: %v\n", csvFile)
	steps := readCSV(csvFile)
	for _, sh := range steps {
		fmt.Printf("Step = %d, Iterations = %d\n", sh.step, len(sh.norms))
		fmt.Printf("%8s %12s %10s\n", "iter", "norm", "ratio")
		for i, norm := range sh.norms {
			if i == 0 {
				fmt.Printf("%8d %12.5e %10s\n", i+1, norm, "-")
			} else {
				fmt.Printf("%8d %12.5e %10.4f\n", i+1, norm, norm/sh.norms[i-1])
			}
		}
		if rate, ok := sh.ReductionRate(); ok {
			fmt.Printf("Mean reduction rate = %8.4f per iteration\n", rate)
		}
	}
}

type StepHistory struct {
	step  int
	norms []float64
}

func (sh *StepHistory) Add(norm float64) {
	sh.norms = append(sh.norms, norm)
}

// ReductionRate is the geometric mean of the successive norm ratios, the
// average contraction factor of the Picard iteration over this step.
func (sh *StepHistory) ReductionRate() (rate float64, ok bool) {
	var (
		logSum float64
		count  int
	)
	for i := 1; i < len(sh.norms); i++ {
		if sh.norms[i] <= 0 || sh.norms[i-1] <= 0 {
			continue
		}
		logSum += math.Log(sh.norms[i] / sh.norms[i-1])
		count++
	}
	if count == 0 {
		return
	}
	rate, ok = math.Exp(logSum/float64(count)), true
	return
}

func readCSV(csvFile string) (steps []*StepHistory) {
	var (
		records [][]string
		err     error
		f       *os.File
		norm    float64
	)
	byStep := make(map[int]*StepHistory)
	if f, err = os.Open(csvFile); err != nil {
		panic(err)
	}
	r := csv.NewReader(bufio.NewReader(f))
	if records, err = r.ReadAll(); err != nil {
		panic(err)
	}
	for i, rec := range records {
		if i == 0 {
			continue
		}
		step, _ := strconv.Atoi(rec[0])
		_, _ = fmt.Sscanf(rec[2], "%f", &norm)
		sh, ok := byStep[step]
		if !ok {
			sh = &StepHistory{step: step}
			byStep[step] = sh
			steps = append(steps, sh)
		}
		sh.Add(norm)
	}
	return
}
