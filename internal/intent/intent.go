// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package intent classifies natural-language questions before they are
// dispatched to an agent. Classification is rule based with an optional
// chat-model override.
package intent

// Intent is the user's goal.
type Intent string

const (
	DataRetrieval  Intent = "data_retrieval"
	DataAnalysis   Intent = "data_analysis"
	DataSummary    Intent = "data_summary"
	DataComparison Intent = "data_comparison"
	DataRanking    Intent = "data_ranking"
	DataCount      Intent = "data_count"
	DataValidation Intent = "data_validation"
	Unknown        Intent = "unknown"

	// Routed intents. The rule parser never produces these; Route does.
	MetadataQuery        Intent = "metadata_query"
	TableInfo            Intent = "table_info"
	SchemaQuery          Intent = "schema_query"
	CustomerSegmentation Intent = "customer_segmentation"
	CustomerProfiling    Intent = "customer_profiling"
	CustomerRiskAnalysis Intent = "customer_risk_analysis"
	CustomerInsight      Intent = "customer_insight"
)

// IsCustomer reports whether i belongs to the customer analysis family.
func (i Intent) IsCustomer() bool {
	switch i {
	case CustomerSegmentation, CustomerProfiling, CustomerRiskAnalysis, CustomerInsight:
		return true
	}
	return false
}

// QueryType is the SQL shape the question implies.
type QueryType string

const (
	QuerySelect    QueryType = "select"
	QueryAggregate QueryType = "aggregate"
	QueryFilter    QueryType = "filter"
	QueryJoin      QueryType = "join"
	QuerySort      QueryType = "sort"
	QueryLimit     QueryType = "limit"
	QueryUnknown   QueryType = "unknown"
)

// Condition is a field/operator/value triple pulled from the question.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Aggregation names an aggregate function.
type Aggregation struct {
	Function string `json:"function"`
	Field    string `json:"field"`
}

// OrderBy is a sort key.
type OrderBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Parsed is the result of classifying one question.
type Parsed struct {
	Intent       Intent        `json:"intent"`
	QueryType    QueryType     `json:"query_type"`
	Entities     []string      `json:"entities"`
	Attributes   []string      `json:"attributes"`
	Conditions   []Condition   `json:"conditions"`
	Aggregations []Aggregation `json:"aggregations"`
	OrderBy      []OrderBy     `json:"order_by"`
	// Limit is 0 when the question names none.
	Limit      int     `json:"limit,omitempty"`
	Confidence float64 `json:"confidence"`
	RawQuery   string  `json:"raw_query"`
	// Tables holds table identifiers named in metadata questions.
	Tables []string `json:"tables,omitempty"`
	// Source is "rules", "llm" or "route".
	Source string `json:"source"`
}

func parseIntent(s string) Intent {
	switch i := Intent(s); i {
	case DataRetrieval, DataAnalysis, DataSummary, DataComparison, DataRanking, DataCount, DataValidation:
		return i
	}
	return Unknown
}

func parseQueryType(s string) QueryType {
	switch q := QueryType(s); q {
	case QuerySelect, QueryAggregate, QueryFilter, QueryJoin, QuerySort, QueryLimit:
		return q
	}
	return QueryUnknown
}
