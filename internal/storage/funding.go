package storage

import "context"

// FundingRoundIDsCreatedAfter returns ids of funding_rounds rows created
// strictly after the watermark. With the default schema the table does not
// exist and the result is always empty; callers should consult
// HasFundingRounds before treating emptiness as meaningful.
func (s *Store) FundingRoundIDsCreatedAfter(ctx context.Context, companyID, watermark string) ([]string, error) {
	if !s.fundingRounds {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT funding_round_id FROM funding_rounds
		WHERE company_id = ? AND created_at > ?`, companyID, watermark)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
