package types

// TableName identifies a relational table. Kept as a distinct type (rather
// than a bare string) so a store constructor can't be handed the wrong
// constant by accident — mirrors the teacher's pkg/types/tables.go.
type TableName string

func (t TableName) Name() string { return string(t) }

const (
	TableDocuments         = TableName("documents")
	TableCrawlRequests     = TableName("crawl_requests")
	TableProcessingLog     = TableName("processing_log")
	TableChunks            = TableName("chunks")
	TableChunkEvaluations  = TableName("chunk_evaluations")
	TableStagedEntities    = TableName("staged_entities")

	TableDTCMaster              = TableName("dtc_master")
	TableDTCPossibleCauses      = TableName("dtc_possible_causes")
	TableDTCDiagnosticSteps     = TableName("dtc_diagnostic_steps")
	TableDTCSymptoms            = TableName("dtc_symptoms")
	TableDTCVerifiedFixes       = TableName("dtc_verified_fixes")
	TableDTCRelatedParts        = TableName("dtc_related_parts")
	TableDTCRelatedSensors      = TableName("dtc_related_sensors")
	TableDTCLiveDataParameters  = TableName("dtc_live_data_parameters")
	TableForumThreads           = TableName("forum_threads")
	TableTSBReferences          = TableName("tsb_references")

	TableDTCEntitySources = TableName("dtc_entity_sources")
	TableResolutionLog    = TableName("resolution_log")

	TableVehicles        = TableName("vehicles")
	TableVehicleDTCLinks = TableName("vehicle_dtc_links")
)
