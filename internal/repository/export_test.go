package repository

const PendingJobsQuery = pendingJobsQuery
