package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"bitbucket.org/Davydov/mipepid/model"
)

// inspectModel prints model parameters.
func inspectModel(fn string, w io.Writer) error {
	m, err := model.Load(fn)
	if err != nil {
		return err
	}
	minW, maxW := math.Inf(1), math.Inf(-1)
	for _, v := range m.Weights {
		minW = math.Min(minW, v)
		maxW = math.Max(maxW, v)
	}
	fmt.Fprintf(w, "format version: %d\n", model.Version)
	fmt.Fprintf(w, "k: %d\n", m.K)
	fmt.Fprintf(w, "weights: %d (min %v, max %v)\n", len(m.Weights), minW, maxW)
	fmt.Fprintf(w, "bias: %v\n", m.Bias)
	fmt.Fprintf(w, "threshold: %v\n", m.Threshold)
	return nil
}

// importModel converts JSON coefficients into a model file.
func importModel(jsonFn, modelFn string) error {
	f, err := os.Open(jsonFn)
	if err != nil {
		return err
	}
	defer f.Close()
	m, err := model.ReadJSON(f)
	if err != nil {
		return fmt.Errorf("%s: %w", jsonFn, err)
	}
	if err := m.Save(modelFn); err != nil {
		return err
	}
	log.Noticef("Wrote model with k=%d to %s", m.K, modelFn)
	return nil
}

// exportModel writes model coefficients as JSON.
func exportModel(modelFn, jsonFn string) error {
	m, err := model.Load(modelFn)
	if err != nil {
		return err
	}
	j, err := json.MarshalIndent(m.Coefficients(), "", "  ")
	if err != nil {
		return err
	}
	j = append(j, '\n')
	if jsonFn == "-" {
		_, err = os.Stdout.Write(j)
		return err
	}
	return os.WriteFile(jsonFn, j, 0666)
}
