// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

/*
Package artifact writes and reads the CSV tables exchanged between pipeline
stages.

Tables:

	segments.csv                    user,tier,value_tag,priority,clv
	cohort<tag>/clusters.csv        pivot,cohesion,size,members
	cohort<tag>/edges.csv           user,neighbor,similarity
	cohort<tag>/recommendations.csv user,item_name,item_id,document_num,score
	<result>                        seq,user,item_name,item_id,document_num,score

Every table is written to <name>.tmp and renamed over <name> by Commit, so a
reader never observes a partial table. Abort removes the temporary file and
is safe to defer after a successful Commit.

Scores in recommendation tables are rounded to at most 8 decimal places.
Edge similarities keep full precision so a table read back scores exactly
like the in-memory stream.
*/
package artifact
